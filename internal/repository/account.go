package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/zolachat/zola-api/internal/model"
	"github.com/zolachat/zola-api/internal/otp"
)

// AccountRepository defines the interface for account-related database
// operations. Emails are matched case-insensitively: every lookup and write
// lower-cases the email first.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByEmailOrGoogleID(ctx context.Context, email, googleID string) (*model.Account, error)
	UpdateAccount(ctx context.Context, id string, params UpdateAccountParams) (*model.Account, error)

	// OTP sub-record operations used by the password-reset engine.
	SetAccountOTP(ctx context.Context, email string, rec *otp.Record) error
	IncrementAccountOTPAttempts(ctx context.Context, email string, max int) (int, error)
	ClearAccountOTP(ctx context.Context, email string) error
}

// UpdateAccountParams defines the optional parameters for updating an account.
// Only the fields that are not nil will be updated.
type UpdateAccountParams struct {
	Name         *string
	AvatarURL    *string
	Phone        *string
	Provider     *string
	GoogleID     *string
	PasswordHash *string
}

const accountCollection = "accounts"

type accountMongoRepository struct {
	db *mongo.Database
}

// NewAccountMongoRepository creates the accounts repository and its indexes.
func NewAccountMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) AccountRepository {
	collection := db.Collection(accountCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "google_id", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create account indexes")
	}

	return &accountMongoRepository{db: db}
}

func (r *accountMongoRepository) CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error) {
	now := time.Now()
	account.Email = strings.ToLower(account.Email)
	account.CreatedAt = now
	account.UpdatedAt = now

	result, err := r.db.Collection(accountCollection).InsertOne(ctx, account)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		account.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return account, nil
}

func (r *accountMongoRepository) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	result := r.db.Collection(accountCollection).FindOne(ctx, bson.M{"_id": objectID})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var account model.Account
	if err := result.Decode(&account); err != nil {
		return nil, err
	}

	return &account, nil
}

func (r *accountMongoRepository) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	result := r.db.Collection(accountCollection).FindOne(ctx, bson.M{"email": strings.ToLower(email)})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var account model.Account
	if err := result.Decode(&account); err != nil {
		return nil, err
	}

	return &account, nil
}

func (r *accountMongoRepository) GetAccountByEmailOrGoogleID(
	ctx context.Context,
	email, googleID string,
) (*model.Account, error) {
	result := r.db.Collection(accountCollection).FindOne(ctx, bson.M{
		"$or": bson.A{
			bson.M{"email": strings.ToLower(email)},
			bson.M{"google_id": googleID},
		},
	})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var account model.Account
	if err := result.Decode(&account); err != nil {
		return nil, err
	}

	return &account, nil
}

func (r *accountMongoRepository) UpdateAccount(
	ctx context.Context,
	id string,
	params UpdateAccountParams,
) (*model.Account, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	// Build update query
	updateMap := bson.M{}
	if params.Name != nil {
		updateMap["name"] = *params.Name
	}
	if params.AvatarURL != nil {
		updateMap["avatar_url"] = *params.AvatarURL
	}
	if params.Phone != nil {
		updateMap["phone"] = *params.Phone
	}
	if params.Provider != nil {
		updateMap["provider"] = *params.Provider
	}
	if params.GoogleID != nil {
		updateMap["google_id"] = *params.GoogleID
	}
	if params.PasswordHash != nil {
		updateMap["password_hash"] = *params.PasswordHash
	}

	if len(updateMap) == 0 {
		return nil, errors.New("no account fields to update")
	}

	updateMap["updated_at"] = time.Now()

	result := r.db.Collection(accountCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": updateMap},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var account model.Account
	if err := result.Decode(&account); err != nil {
		return nil, err
	}

	return &account, nil
}

func (r *accountMongoRepository) SetAccountOTP(ctx context.Context, email string, rec *otp.Record) error {
	result, err := r.db.Collection(accountCollection).UpdateOne(
		ctx,
		bson.M{"email": strings.ToLower(email)},
		bson.M{"$set": bson.M{
			"otp":                rec.Code,
			"otp_expiry":         rec.ExpiresAt,
			"otp_attempts":       rec.Attempts,
			"otp_send_attempts":  rec.SendAttempts,
			"otp_last_send_time": rec.LastSentAt,
			"updated_at":         time.Now(),
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	return nil
}

// IncrementAccountOTPAttempts burns one verify attempt. The filter carries the
// budget check so two concurrent verifies cannot both pass the gate on the
// same stale read.
func (r *accountMongoRepository) IncrementAccountOTPAttempts(
	ctx context.Context,
	email string,
	max int,
) (int, error) {
	result := r.db.Collection(accountCollection).FindOneAndUpdate(
		ctx,
		bson.M{
			"email":        strings.ToLower(email),
			"otp_attempts": bson.M{"$lt": max},
		},
		bson.M{
			"$inc": bson.M{"otp_attempts": 1},
			"$set": bson.M{"updated_at": time.Now()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return 0, otp.ErrAttemptsExhausted
		}
		return 0, result.Err()
	}

	var account model.Account
	if err := result.Decode(&account); err != nil {
		return 0, err
	}

	return account.OTPAttempts, nil
}

func (r *accountMongoRepository) ClearAccountOTP(ctx context.Context, email string) error {
	_, err := r.db.Collection(accountCollection).UpdateOne(
		ctx,
		bson.M{"email": strings.ToLower(email)},
		bson.M{
			"$unset": bson.M{
				"otp":                "",
				"otp_expiry":         "",
				"otp_attempts":       "",
				"otp_send_attempts":  "",
				"otp_last_send_time": "",
			},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	return err
}

// AccountOTPStore adapts the account OTP sub-record to the otp.Store
// interface so the password-reset engine can run against the accounts
// collection.
type AccountOTPStore struct {
	Accounts AccountRepository
}

func (s *AccountOTPStore) Get(ctx context.Context, email string) (*otp.Record, error) {
	account, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, otp.ErrNoRecord
		}
		return nil, err
	}

	return &otp.Record{
		Code:         account.OTP,
		ExpiresAt:    account.OTPExpiry,
		Attempts:     account.OTPAttempts,
		SendAttempts: account.OTPSendAttempts,
		LastSentAt:   account.OTPLastSendTime,
	}, nil
}

func (s *AccountOTPStore) Put(ctx context.Context, email string, rec *otp.Record) error {
	err := s.Accounts.SetAccountOTP(ctx, email, rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return otp.ErrNoRecord
	}
	return err
}

func (s *AccountOTPStore) IncrementAttempts(ctx context.Context, email string, max int) (int, error) {
	return s.Accounts.IncrementAccountOTPAttempts(ctx, email, max)
}

func (s *AccountOTPStore) Clear(ctx context.Context, email string) error {
	return s.Accounts.ClearAccountOTP(ctx, email)
}
