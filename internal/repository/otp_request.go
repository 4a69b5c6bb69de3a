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

	"github.com/zolachat/zola-api/internal/otp"
)

// otpRequest is the registration-gate OTP record, kept in its own collection
// because the account does not exist yet at that point.
type otpRequest struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Email        string        `bson:"email"`
	Code         string        `bson:"code"`
	ExpiresAt    time.Time     `bson:"expires_at"`
	Attempts     int           `bson:"attempts"`
	SendAttempts int           `bson:"send_attempts"`
	LastSentAt   time.Time     `bson:"last_sent_at"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}

const otpRequestCollection = "otp_requests"

// otpRequestMongoRepository implements otp.Store over the otp_requests
// collection.
type otpRequestMongoRepository struct {
	db *mongo.Database
}

// NewOTPRequestMongoRepository creates the registration-gate OTP store. Stale
// records are reaped by a TTL index on last_sent_at, one hour after the last
// send, so an abandoned registration does not pin its send budget forever.
func NewOTPRequestMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) otp.Store {
	collection := db.Collection(otpRequestCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "last_sent_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(3600), // TTL index
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create otp request indexes")
	}

	return &otpRequestMongoRepository{db: db}
}

func (r *otpRequestMongoRepository) Get(ctx context.Context, email string) (*otp.Record, error) {
	result := r.db.Collection(otpRequestCollection).FindOne(ctx, bson.M{"email": strings.ToLower(email)})
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return nil, otp.ErrNoRecord
		}
		return nil, result.Err()
	}

	var req otpRequest
	if err := result.Decode(&req); err != nil {
		return nil, err
	}

	return &otp.Record{
		Code:         req.Code,
		ExpiresAt:    req.ExpiresAt,
		Attempts:     req.Attempts,
		SendAttempts: req.SendAttempts,
		LastSentAt:   req.LastSentAt,
	}, nil
}

func (r *otpRequestMongoRepository) Put(ctx context.Context, email string, rec *otp.Record) error {
	now := time.Now()
	_, err := r.db.Collection(otpRequestCollection).UpdateOne(
		ctx,
		bson.M{"email": strings.ToLower(email)},
		bson.M{
			"$set": bson.M{
				"code":          rec.Code,
				"expires_at":    rec.ExpiresAt,
				"attempts":      rec.Attempts,
				"send_attempts": rec.SendAttempts,
				"last_sent_at":  rec.LastSentAt,
				"updated_at":    now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

func (r *otpRequestMongoRepository) IncrementAttempts(ctx context.Context, email string, max int) (int, error) {
	result := r.db.Collection(otpRequestCollection).FindOneAndUpdate(
		ctx,
		bson.M{
			"email":    strings.ToLower(email),
			"attempts": bson.M{"$lt": max},
		},
		bson.M{
			"$inc": bson.M{"attempts": 1},
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

	var req otpRequest
	if err := result.Decode(&req); err != nil {
		return 0, err
	}

	return req.Attempts, nil
}

func (r *otpRequestMongoRepository) Clear(ctx context.Context, email string) error {
	_, err := r.db.Collection(otpRequestCollection).DeleteOne(ctx, bson.M{"email": strings.ToLower(email)})
	return err
}
