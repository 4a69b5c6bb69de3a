// Package security wraps password hashing so call sites never touch the hash
// library directly.
package security

import (
	"github.com/matthewhartstonge/argon2"
)

var hasher = argon2.DefaultConfig()

// HashPassword returns the encoded one-way hash of a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := hasher.HashEncoded([]byte(password))
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// VerifyPassword reports whether password matches the encoded hash. The
// comparison inside the hash library is constant-time.
func VerifyPassword(password, encodedHash string) (bool, error) {
	return argon2.VerifyEncoded([]byte(password), []byte(encodedHash))
}
