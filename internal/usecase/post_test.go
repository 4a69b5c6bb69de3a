package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/zolachat/zola-api/internal/model"
	"github.com/zolachat/zola-api/internal/repository"
)

// fakePostRepo is an in-memory PostRepository.
type fakePostRepo struct {
	posts []*model.Post
	likes map[string]map[string]bool // postID -> userID -> liked
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{likes: make(map[string]map[string]bool)}
}

func (r *fakePostRepo) findByID(id string) *model.Post {
	for _, p := range r.posts {
		if p.ID.Hex() == id {
			return p
		}
	}
	return nil
}

func (r *fakePostRepo) CreatePost(_ context.Context, post *model.Post) (*model.Post, error) {
	post.ID = bson.NewObjectID()
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	r.posts = append(r.posts, post)
	return post, nil
}

func (r *fakePostRepo) GetPost(_ context.Context, id string) (*model.Post, error) {
	if p := r.findByID(id); p != nil {
		return p, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakePostRepo) UpdatePost(
	_ context.Context,
	id string,
	params repository.UpdatePostParams,
) (*model.Post, error) {
	p := r.findByID(id)
	if p == nil {
		return nil, mongo.ErrNoDocuments
	}

	if params.Caption != nil {
		p.Caption = *params.Caption
	}
	if params.Media != nil {
		p.Media = *params.Media
	}
	if params.Visibility != nil {
		p.Visibility = *params.Visibility
	}
	if params.Tags != nil {
		p.Tags = *params.Tags
	}
	p.UpdatedAt = time.Now()
	return p, nil
}

func (r *fakePostRepo) SetPostDeleted(_ context.Context, id string, deleted bool) (*model.Post, error) {
	p := r.findByID(id)
	if p == nil {
		return nil, mongo.ErrNoDocuments
	}
	p.IsDeleted = deleted
	p.UpdatedAt = time.Now()
	return p, nil
}

func (r *fakePostRepo) ListPublicPosts(
	_ context.Context,
	params repository.FilterPostsParams,
) ([]*model.Post, error) {
	var out []*model.Post
	for _, p := range r.posts {
		if p.Visibility == model.VisibilityPublic && !p.IsDeleted {
			out = append(out, p)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		switch params.SortBy {
		case repository.PostSortLiked:
			return out[i].LikeCount > out[j].LikeCount
		case repository.PostSortViewed:
			return out[i].ViewCount > out[j].ViewCount
		case repository.PostSortPromoted:
			return out[i].PromotionLevel > out[j].PromotionLevel
		default:
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
	})
	return out, nil
}

func (r *fakePostRepo) ListFeaturedPosts(_ context.Context, _ int64) ([]*model.Post, error) {
	var out []*model.Post
	for _, p := range r.posts {
		if p.Visibility == model.VisibilityPublic && !p.IsDeleted {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PromotionLevel != out[j].PromotionLevel {
			return out[i].PromotionLevel > out[j].PromotionLevel
		}
		return out[i].LikeCount > out[j].LikeCount
	})
	return out, nil
}

func (r *fakePostRepo) ListPostsByAuthor(
	_ context.Context,
	authorID string,
	deleted bool,
	_ int64,
) ([]*model.Post, error) {
	var out []*model.Post
	for _, p := range r.posts {
		if p.AuthorID == authorID && p.IsDeleted == deleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePostRepo) ToggleLike(_ context.Context, postID, userID string) (bool, int64, error) {
	p := r.findByID(postID)
	if p == nil {
		return false, 0, mongo.ErrNoDocuments
	}

	if r.likes[postID] == nil {
		r.likes[postID] = make(map[string]bool)
	}

	if r.likes[postID][userID] {
		delete(r.likes[postID], userID)
		p.LikeCount--
		return false, p.LikeCount, nil
	}

	r.likes[postID][userID] = true
	p.LikeCount++
	return true, p.LikeCount, nil
}

func (r *fakePostRepo) HasUserLiked(_ context.Context, postID, userID string) (bool, error) {
	return r.likes[postID][userID], nil
}

func (r *fakePostRepo) IncrementCommentCount(_ context.Context, postID string, delta int) error {
	if p := r.findByID(postID); p != nil {
		p.CommentCount += int64(delta)
	}
	return nil
}

// fakeUploader records uploads; failOn makes a specific key prefix fail.
type fakeUploader struct {
	uploaded []string
	err      error
	failNext int
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string, _ io.Reader) (string, error) {
	if u.failNext > 0 {
		u.failNext--
		return "", errors.New("upload failed")
	}
	if u.err != nil {
		return "", u.err
	}
	u.uploaded = append(u.uploaded, key)
	return "https://cdn.example.com/" + key, nil
}

type postFixture struct {
	usecase  PostUsecase
	posts    *fakePostRepo
	accounts *fakeAccountRepo
	uploader *fakeUploader
	author   *model.Account
}

func newPostFixture(t *testing.T) *postFixture {
	t.Helper()

	posts := newFakePostRepo()
	accounts := &fakeAccountRepo{}
	uploader := &fakeUploader{}
	logger := zerolog.Nop()

	author, err := accounts.CreateAccount(context.Background(), &model.Account{
		Email:     "author@example.com",
		Name:      "Author",
		AvatarURL: "https://img/avatar.png",
		Provider:  model.ProviderEmail,
	})
	require.NoError(t, err)

	return &postFixture{
		usecase:  NewPostUsecase(posts, accounts, uploader, &logger),
		posts:    posts,
		accounts: accounts,
		uploader: uploader,
		author:   author,
	}
}

func (f *postFixture) createPost(t *testing.T, caption string) *model.Post {
	t.Helper()

	post, err := f.usecase.CreatePost(context.Background(), CreatePostParams{
		AuthorID: f.author.ID.Hex(),
		Caption:  caption,
	})
	require.NoError(t, err)
	return post
}

func TestCreatePost_Defaults(t *testing.T) {
	f := newPostFixture(t)

	post := f.createPost(t, "hello world")

	assert.Equal(t, model.VisibilityPublic, post.Visibility)
	assert.False(t, post.IsDeleted)
	assert.Equal(t, 1, post.PromotionLevel)
	assert.Equal(t, "Author", post.AuthorName)
}

func TestCreatePost_TitlePrependedToCaption(t *testing.T) {
	f := newPostFixture(t)

	post, err := f.usecase.CreatePost(context.Background(), CreatePostParams{
		AuthorID: f.author.ID.Hex(),
		Title:    "My Title",
		Caption:  "body text",
	})
	require.NoError(t, err)

	assert.Equal(t, "My Title\nbody text", post.Caption)
}

func TestCreatePost_RequiresCaptionOrMedia(t *testing.T) {
	f := newPostFixture(t)

	_, err := f.usecase.CreatePost(context.Background(), CreatePostParams{
		AuthorID: f.author.ID.Hex(),
		Caption:  "   ",
	})
	assert.ErrorIs(t, err, ErrEmptyPost)
}

func TestCreatePost_FailedUploadIsSkipped(t *testing.T) {
	f := newPostFixture(t)
	f.uploader.failNext = 1

	post, err := f.usecase.CreatePost(context.Background(), CreatePostParams{
		AuthorID: f.author.ID.Hex(),
		Caption:  "with media",
		Media: []MediaUpload{
			{Filename: "a.jpg", ContentType: "image/jpeg", Data: []byte("not-a-real-image")},
			{Filename: "b.jpg", ContentType: "image/jpeg", Data: []byte("not-a-real-image")},
		},
	})
	require.NoError(t, err)

	// The first upload failed and was dropped; the second one survived with
	// fallback dimensions since the bytes do not decode.
	require.Len(t, post.Media, 1)
	assert.Equal(t, model.MediaTypeImage, post.Media[0].Type)
	assert.Equal(t, defaultMediaWidth, post.Media[0].Width)
	assert.Equal(t, defaultMediaHeight, post.Media[0].Height)
}

func TestUpdatePost_OnlyAuthor(t *testing.T) {
	f := newPostFixture(t)
	post := f.createPost(t, "original")

	caption := "edited"
	_, err := f.usecase.UpdatePost(context.Background(), UpdatePostParams{
		PostID:  post.ID.Hex(),
		UserID:  "someone-else",
		Caption: &caption,
	})
	assert.ErrorIs(t, err, ErrNotPostOwnerEdit)
}

func TestUpdatePost_AppendsMedia(t *testing.T) {
	f := newPostFixture(t)

	post, err := f.usecase.CreatePost(context.Background(), CreatePostParams{
		AuthorID: f.author.ID.Hex(),
		Caption:  "with media",
		Media:    []MediaUpload{{Filename: "a.jpg", ContentType: "image/jpeg", Data: []byte("x")}},
	})
	require.NoError(t, err)
	require.Len(t, post.Media, 1)

	updated, err := f.usecase.UpdatePost(context.Background(), UpdatePostParams{
		PostID: post.ID.Hex(),
		UserID: f.author.ID.Hex(),
		Media:  []MediaUpload{{Filename: "b.mp4", ContentType: "video/mp4", Data: []byte("y")}},
	})
	require.NoError(t, err)

	require.Len(t, updated.Media, 2)
	assert.Equal(t, model.MediaTypeVideo, updated.Media[1].Type)
}

func TestDeleteRestoreLifecycle(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()
	post := f.createPost(t, "lifecycle")
	authorID := f.author.ID.Hex()

	// A stranger cannot delete.
	err := f.usecase.DeletePost(ctx, post.ID.Hex(), "someone-else")
	assert.ErrorIs(t, err, ErrNotPostOwnerDel)

	require.NoError(t, f.usecase.DeletePost(ctx, post.ID.Hex(), authorID))
	assert.True(t, post.IsDeleted)

	// Deleted posts drop out of the public feed.
	feed, err := f.usecase.PublicFeed(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, feed)

	restored, err := f.usecase.RestorePost(ctx, post.ID.Hex(), authorID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)

	// Restoring a post that is not deleted is a validation error.
	_, err = f.usecase.RestorePost(ctx, post.ID.Hex(), authorID)
	assert.ErrorIs(t, err, ErrPostNotDeleted)
}

func TestToggleLike_TogglesAndCounts(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()
	post := f.createPost(t, "likeable")

	first, err := f.usecase.ToggleLike(ctx, post.ID.Hex(), "user-1")
	require.NoError(t, err)
	assert.True(t, first.Liked)
	assert.Equal(t, int64(1), first.LikeCount)

	second, err := f.usecase.ToggleLike(ctx, post.ID.Hex(), "user-1")
	require.NoError(t, err)
	assert.False(t, second.Liked)
	assert.Equal(t, int64(0), second.LikeCount)
}

func TestPublicFeed_SortsByLikes(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()

	low := f.createPost(t, "low")
	high := f.createPost(t, "high")
	high.LikeCount = 10
	low.LikeCount = 2

	feed, err := f.usecase.PublicFeed(ctx, repository.PostSortLiked, 0)
	require.NoError(t, err)

	require.Len(t, feed, 2)
	assert.Equal(t, "high", feed[0].Caption)
}

func TestGetPost_DeletedIsNotFound(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()
	post := f.createPost(t, "gone soon")

	require.NoError(t, f.usecase.DeletePost(ctx, post.ID.Hex(), f.author.ID.Hex()))

	_, err := f.usecase.GetPost(ctx, post.ID.Hex())
	assert.ErrorIs(t, err, ErrPostNotFound)
}
