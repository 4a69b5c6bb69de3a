package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Authentication providers an account can be bound to.
const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

// Account represents one principal. The otp_* fields form the OTP sub-record
// used by the password-reset flow; they are set on send and cleared on
// successful verification or reset completion.
type Account struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"password_hash,omitempty"`
	Name         string        `bson:"name"`
	AvatarURL    string        `bson:"avatar_url,omitempty"`
	Phone        string        `bson:"phone,omitempty"`
	Provider     string        `bson:"provider"`
	GoogleID     string        `bson:"google_id,omitempty"`

	OTP             string    `bson:"otp,omitempty"`
	OTPExpiry       time.Time `bson:"otp_expiry,omitempty"`
	OTPAttempts     int       `bson:"otp_attempts,omitempty"`
	OTPSendAttempts int       `bson:"otp_send_attempts,omitempty"`
	OTPLastSendTime time.Time `bson:"otp_last_send_time,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}
