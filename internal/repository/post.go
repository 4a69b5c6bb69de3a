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

// Feed orderings for public post queries.
const (
	PostSortNewest   = "updated_at"
	PostSortLiked    = "like_count"
	PostSortViewed   = "view_count"
	PostSortPromoted = "promotion_level"
)

// PostRepository defines the interface for post-related database operations.
type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) (*model.Post, error)
	GetPost(ctx context.Context, id string) (*model.Post, error)
	UpdatePost(ctx context.Context, id string, params UpdatePostParams) (*model.Post, error)
	SetPostDeleted(ctx context.Context, id string, deleted bool) (*model.Post, error)
	ListPublicPosts(ctx context.Context, params FilterPostsParams) ([]*model.Post, error)
	ListFeaturedPosts(ctx context.Context, limit int64) ([]*model.Post, error)
	ListPostsByAuthor(ctx context.Context, authorID string, deleted bool, limit int64) ([]*model.Post, error)
	ToggleLike(ctx context.Context, postID, userID string) (liked bool, likeCount int64, err error)
	HasUserLiked(ctx context.Context, postID, userID string) (bool, error)
	IncrementCommentCount(ctx context.Context, postID string, delta int) error
}

// UpdatePostParams defines the optional parameters for updating a post. Only
// the fields that are not nil will be updated.
type UpdatePostParams struct {
	Caption    *string
	Media      *[]model.MediaItem
	Visibility *string
	Tags       *[]string
}

// FilterPostsParams defines the parameters for public feed queries.
type FilterPostsParams struct {
	SortBy string
	Limit  int64
}

const (
	postCollection     = "posts"
	postLikeCollection = "post_likes"
)

type postMongoRepository struct {
	db *mongo.Database
}

// NewPostMongoRepository creates the posts repository and its indexes.
func NewPostMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) PostRepository {
	postIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "is_deleted", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "visibility", Value: 1},
				{Key: "is_deleted", Value: 1},
				{Key: "updated_at", Value: -1},
			},
		},
	}

	_, err := db.Collection(postCollection).Indexes().CreateMany(ctx, postIndexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create post indexes")
	}

	likeIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err = db.Collection(postLikeCollection).Indexes().CreateMany(ctx, likeIndexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create post like indexes")
	}

	return &postMongoRepository{db: db}
}

func (r *postMongoRepository) CreatePost(ctx context.Context, post *model.Post) (*model.Post, error) {
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now

	result, err := r.db.Collection(postCollection).InsertOne(ctx, post)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		post.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return post, nil
}

func (r *postMongoRepository) GetPost(ctx context.Context, id string) (*model.Post, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	result := r.db.Collection(postCollection).FindOne(ctx, bson.M{"_id": objectID})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var post model.Post
	if err := result.Decode(&post); err != nil {
		return nil, err
	}

	return &post, nil
}

func (r *postMongoRepository) UpdatePost(
	ctx context.Context,
	id string,
	params UpdatePostParams,
) (*model.Post, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	// Build update query
	updateMap := bson.M{}
	if params.Caption != nil {
		updateMap["caption"] = *params.Caption
	}
	if params.Media != nil {
		updateMap["media"] = *params.Media
	}
	if params.Visibility != nil {
		updateMap["visibility"] = *params.Visibility
	}
	if params.Tags != nil {
		updateMap["tags"] = *params.Tags
	}

	if len(updateMap) == 0 {
		return nil, errors.New("no post fields to update")
	}

	updateMap["updated_at"] = time.Now()

	result := r.db.Collection(postCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": updateMap},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var post model.Post
	if err := result.Decode(&post); err != nil {
		return nil, err
	}

	return &post, nil
}

func (r *postMongoRepository) SetPostDeleted(ctx context.Context, id string, deleted bool) (*model.Post, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	result := r.db.Collection(postCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{
			"is_deleted": deleted,
			"updated_at": time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var post model.Post
	if err := result.Decode(&post); err != nil {
		return nil, err
	}

	return &post, nil
}

func (r *postMongoRepository) ListPublicPosts(
	ctx context.Context,
	params FilterPostsParams,
) ([]*model.Post, error) {
	limit := params.Limit
	if limit == 0 {
		limit = 50
	}

	sortBy := params.SortBy
	if sortBy == "" {
		sortBy = PostSortNewest
	}

	findOptions := options.Find().
		SetLimit(limit).
		SetSort(bson.D{{Key: sortBy, Value: -1}})

	filter := bson.M{
		"visibility": model.VisibilityPublic,
		"is_deleted": false,
	}

	return r.findPosts(ctx, filter, findOptions)
}

func (r *postMongoRepository) ListFeaturedPosts(ctx context.Context, limit int64) ([]*model.Post, error) {
	if limit == 0 {
		limit = 10
	}

	findOptions := options.Find().
		SetLimit(limit).
		SetSort(bson.D{
			{Key: "promotion_level", Value: -1},
			{Key: "like_count", Value: -1},
		})

	filter := bson.M{
		"visibility": model.VisibilityPublic,
		"is_deleted": false,
	}

	return r.findPosts(ctx, filter, findOptions)
}

func (r *postMongoRepository) ListPostsByAuthor(
	ctx context.Context,
	authorID string,
	deleted bool,
	limit int64,
) ([]*model.Post, error) {
	if limit == 0 {
		limit = 50
	}

	sortBy := "created_at"
	if deleted {
		sortBy = "updated_at"
	}

	findOptions := options.Find().
		SetLimit(limit).
		SetSort(bson.D{{Key: sortBy, Value: -1}})

	filter := bson.M{
		"author_id":  authorID,
		"is_deleted": deleted,
	}

	return r.findPosts(ctx, filter, findOptions)
}

func (r *postMongoRepository) findPosts(
	ctx context.Context,
	filter bson.M,
	findOptions *options.FindOptionsBuilder,
) ([]*model.Post, error) {
	cursor, err := r.db.Collection(postCollection).Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var posts []*model.Post
	for cursor.Next(ctx) {
		var post model.Post
		if err := cursor.Decode(&post); err != nil {
			return nil, err
		}
		posts = append(posts, &post)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}

// ToggleLike inserts or removes the caller's like record and adjusts the
// like counter with an atomic $inc, so concurrent toggles by the same user
// cannot double-count: the unique {post_id, user_id} index rejects the second
// concurrent insert.
func (r *postMongoRepository) ToggleLike(
	ctx context.Context,
	postID, userID string,
) (bool, int64, error) {
	objectID, err := bson.ObjectIDFromHex(postID)
	if err != nil {
		return false, 0, err
	}

	likes := r.db.Collection(postLikeCollection)

	liked := true
	delta := 1
	_, err = likes.InsertOne(ctx, &model.PostLike{
		PostID:    objectID,
		UserID:    userID,
		CreatedAt: time.Now(),
	})
	if err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return false, 0, err
		}

		// Already liked: this toggle is an unlike.
		result, err := likes.DeleteOne(ctx, bson.M{"post_id": objectID, "user_id": userID})
		if err != nil {
			return false, 0, err
		}
		if result.DeletedCount == 0 {
			// A concurrent unlike got there first; leave the counter alone.
			post, err := r.GetPost(ctx, postID)
			if err != nil {
				return false, 0, err
			}
			return false, post.LikeCount, nil
		}
		liked = false
		delta = -1
	}

	updated := r.db.Collection(postCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		bson.M{
			"$inc": bson.M{"like_count": delta},
			"$set": bson.M{"updated_at": time.Now()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if updated.Err() != nil {
		return false, 0, updated.Err()
	}

	var post model.Post
	if err := updated.Decode(&post); err != nil {
		return false, 0, err
	}

	return liked, post.LikeCount, nil
}

// IncrementCommentCount adjusts the comment counter atomically. A delta for a
// post that no longer exists is a no-op.
func (r *postMongoRepository) IncrementCommentCount(ctx context.Context, postID string, delta int) error {
	objectID, err := bson.ObjectIDFromHex(postID)
	if err != nil {
		return err
	}

	_, err = r.db.Collection(postCollection).UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$inc": bson.M{"comment_count": delta}},
	)
	return err
}

func (r *postMongoRepository) HasUserLiked(ctx context.Context, postID, userID string) (bool, error) {
	objectID, err := bson.ObjectIDFromHex(postID)
	if err != nil {
		return false, err
	}

	result := r.db.Collection(postLikeCollection).FindOne(ctx, bson.M{
		"post_id": objectID,
		"user_id": userID,
	})
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, result.Err()
	}

	return true, nil
}
