package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/zolachat/zola-api/internal/model"
)

// CommentRepository defines the interface for comment-related database
// operations.
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) (*model.Comment, error)
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	UpdateComment(ctx context.Context, id string, params UpdateCommentParams) (*model.Comment, error)
	ListCommentsByTarget(ctx context.Context, targetID string, limit int64) ([]*model.Comment, error)
}

// UpdateCommentParams defines the optional parameters for updating a comment.
// Only the fields that are not nil will be updated.
type UpdateCommentParams struct {
	Content   *string
	IsDeleted *bool
}

const commentCollection = "comments"

type commentMongoRepository struct {
	db *mongo.Database
}

// NewCommentMongoRepository creates the comments repository and its indexes.
func NewCommentMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) CommentRepository {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "target_id", Value: 1},
				{Key: "is_deleted", Value: 1},
				{Key: "created_at", Value: 1},
			},
		},
	}

	_, err := db.Collection(commentCollection).Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create comment indexes")
	}

	return &commentMongoRepository{db: db}
}

func (r *commentMongoRepository) CreateComment(ctx context.Context, comment *model.Comment) (*model.Comment, error) {
	now := time.Now()
	comment.CreatedAt = now
	comment.UpdatedAt = now

	result, err := r.db.Collection(commentCollection).InsertOne(ctx, comment)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		comment.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return comment, nil
}

func (r *commentMongoRepository) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	result := r.db.Collection(commentCollection).FindOne(ctx, bson.M{"_id": objectID})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var comment model.Comment
	if err := result.Decode(&comment); err != nil {
		return nil, err
	}

	return &comment, nil
}

func (r *commentMongoRepository) UpdateComment(
	ctx context.Context,
	id string,
	params UpdateCommentParams,
) (*model.Comment, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	// Build update query
	updateMap := bson.M{}
	if params.Content != nil {
		updateMap["content"] = *params.Content
	}
	if params.IsDeleted != nil {
		updateMap["is_deleted"] = *params.IsDeleted
	}

	if len(updateMap) == 0 {
		return nil, errors.New("no comment fields to update")
	}

	updateMap["updated_at"] = time.Now()

	result := r.db.Collection(commentCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": updateMap},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var comment model.Comment
	if err := result.Decode(&comment); err != nil {
		return nil, err
	}

	return &comment, nil
}

func (r *commentMongoRepository) ListCommentsByTarget(
	ctx context.Context,
	targetID string,
	limit int64,
) ([]*model.Comment, error) {
	if limit == 0 {
		limit = 50
	}

	findOptions := options.Find().
		SetLimit(limit).
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	filter := bson.M{
		"target_id":  targetID,
		"is_deleted": false,
	}

	cursor, err := r.db.Collection(commentCollection).Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var comments []*model.Comment
	for cursor.Next(ctx) {
		var comment model.Comment
		if err := cursor.Decode(&comment); err != nil {
			return nil, err
		}
		comments = append(comments, &comment)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return comments, nil
}
