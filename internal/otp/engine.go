// Package otp implements the one-time-code policy engine: issuing, verifying
// and clearing codes with bounded send and verify budgets, scoped per email.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	// ErrNoRecord is returned by a Store when no OTP record exists for an email.
	ErrNoRecord = errors.New("otp: no record")

	// ErrAttemptsExhausted is returned by Store.IncrementAttempts when the
	// verify budget was already spent before the increment.
	ErrAttemptsExhausted = errors.New("otp: attempts exhausted")

	// ErrRateLimited means the send budget for this email is exhausted.
	ErrRateLimited = errors.New("otp: send budget exhausted")

	// ErrExpired means the code on record has passed its expiry; the record is
	// cleared before this is returned.
	ErrExpired = errors.New("otp: code expired")

	// ErrTooManyAttempts means the verify budget is exhausted; a new code must
	// be issued before retrying.
	ErrTooManyAttempts = errors.New("otp: too many failed attempts")

	// ErrNoOTP means no code is on record for this email.
	ErrNoOTP = errors.New("otp: no code on record")
)

// InvalidCodeError reports a mismatched code and how many attempts remain.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("otp: invalid code, %d attempts remaining", e.Remaining)
}

// Record is the per-email OTP state a Store persists.
type Record struct {
	Code         string
	ExpiresAt    time.Time
	Attempts     int
	SendAttempts int
	LastSentAt   time.Time
}

// Store persists OTP records keyed by email. Implementations back onto either
// the account document's otp_* fields or a dedicated collection.
type Store interface {
	// Get returns the record for email, or ErrNoRecord.
	Get(ctx context.Context, email string) (*Record, error)

	// Put overwrites the record for email.
	Put(ctx context.Context, email string, rec *Record) error

	// IncrementAttempts atomically increments the failed-verify counter,
	// provided it is still below max, and returns the new value. When the
	// budget was already spent it returns ErrAttemptsExhausted without
	// incrementing.
	IncrementAttempts(ctx context.Context, email string, max int) (int, error)

	// Clear removes the record for email. Clearing an absent record is a no-op.
	Clear(ctx context.Context, email string) error
}

// Policy holds the tunable constants of one OTP use case.
type Policy struct {
	ExpiryWindow      time.Duration
	MaxSendAttempts   int
	MaxVerifyAttempts int

	// SendCooldown is how long after the last send the send budget resets.
	// Zero disables the reset, permanently locking the email out once the
	// budget is spent.
	SendCooldown time.Duration
}

// Engine applies one Policy over one Store. Instantiate it once per use case
// (registration gate, password reset).
type Engine struct {
	store  Store
	policy Policy
	now    func() time.Time
}

// NewEngine creates an Engine for the given store and policy.
func NewEngine(store Store, policy Policy) *Engine {
	return &Engine{
		store:  store,
		policy: policy,
		now:    time.Now,
	}
}

// IssueResult describes a successful Issue.
type IssueResult struct {
	Code         string
	ExpiresAt    time.Time
	SendAttempts int
}

// Issue generates a fresh code for email and persists it with a reset verify
// counter and an incremented send counter. It fails with ErrRateLimited once
// the send budget is spent; the budget resets after Policy.SendCooldown.
// Dispatching the code to the user is the caller's job.
func (e *Engine) Issue(ctx context.Context, email string) (*IssueResult, error) {
	now := e.now()

	sendAttempts := 0
	rec, err := e.store.Get(ctx, email)
	switch {
	case err == nil:
		sendAttempts = rec.SendAttempts
		if e.policy.SendCooldown > 0 && !rec.LastSentAt.IsZero() &&
			now.Sub(rec.LastSentAt) >= e.policy.SendCooldown {
			sendAttempts = 0
		}
	case errors.Is(err, ErrNoRecord):
		// first issue for this email
	default:
		return nil, err
	}

	if sendAttempts >= e.policy.MaxSendAttempts {
		return nil, ErrRateLimited
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	next := &Record{
		Code:         code,
		ExpiresAt:    now.Add(e.policy.ExpiryWindow),
		Attempts:     0,
		SendAttempts: sendAttempts + 1,
		LastSentAt:   now,
	}
	if err := e.store.Put(ctx, email, next); err != nil {
		return nil, err
	}

	return &IssueResult{
		Code:         code,
		ExpiresAt:    next.ExpiresAt,
		SendAttempts: next.SendAttempts,
	}, nil
}

// Verify checks candidate against the code on record. On mismatch it burns one
// verify attempt and reports the remainder via InvalidCodeError; once the
// budget is spent every call fails with ErrTooManyAttempts. An expired code is
// cleared and reported as ErrExpired. Verify has no side effect on success;
// clearing the record afterwards is the caller's decision.
func (e *Engine) Verify(ctx context.Context, email, candidate string) error {
	rec, err := e.store.Get(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNoRecord) {
			return ErrNoOTP
		}
		return err
	}
	if rec.Code == "" {
		return ErrNoOTP
	}

	if rec.Attempts >= e.policy.MaxVerifyAttempts {
		return ErrTooManyAttempts
	}

	if e.now().After(rec.ExpiresAt) {
		if err := e.store.Clear(ctx, email); err != nil {
			return err
		}
		return ErrExpired
	}

	if subtle.ConstantTimeCompare([]byte(candidate), []byte(rec.Code)) != 1 {
		attempts, err := e.store.IncrementAttempts(ctx, email, e.policy.MaxVerifyAttempts)
		if err != nil {
			if errors.Is(err, ErrAttemptsExhausted) {
				return ErrTooManyAttempts
			}
			return err
		}
		remaining := e.policy.MaxVerifyAttempts - attempts
		if remaining <= 0 {
			return ErrTooManyAttempts
		}
		return &InvalidCodeError{Remaining: remaining}
	}

	return nil
}

// Clear deletes the record for email. Calling it twice is a no-op the second
// time.
func (e *Engine) Clear(ctx context.Context, email string) error {
	return e.store.Clear(ctx, email)
}

// generateCode returns a uniformly random 6-digit numeric code in
// [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
