package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/zolachat/zola-api/internal/apperror"
	"github.com/zolachat/zola-api/internal/model"
	"github.com/zolachat/zola-api/internal/repository"
)

// PostUsecase defines the interface for post-related use cases.
type PostUsecase interface {
	CreatePost(ctx context.Context, params CreatePostParams) (*model.Post, error)
	GetPost(ctx context.Context, id string) (*model.Post, error)
	UpdatePost(ctx context.Context, params UpdatePostParams) (*model.Post, error)
	DeletePost(ctx context.Context, postID, userID string) error
	RestorePost(ctx context.Context, postID, userID string) (*model.Post, error)
	PublicFeed(ctx context.Context, sortBy string, limit int64) ([]*model.Post, error)
	FeaturedPosts(ctx context.Context, limit int64) ([]*model.Post, error)
	MyPosts(ctx context.Context, userID string, limit int64) ([]*model.Post, error)
	MyDeletedPosts(ctx context.Context, userID string, limit int64) ([]*model.Post, error)
	ToggleLike(ctx context.Context, postID, userID string) (*LikeResult, error)
	HasLiked(ctx context.Context, postID, userID string) (bool, error)
}

// Uploader stores a media object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// MediaUpload is one file received from the client, not yet stored.
type MediaUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CreatePostParams defines the parameters for creating a post.
type CreatePostParams struct {
	AuthorID   string
	Title      string
	Caption    string
	Visibility string
	Tags       []string
	Media      []MediaUpload
}

// UpdatePostParams defines the parameters for editing a post. New media is
// appended to what the post already carries.
type UpdatePostParams struct {
	PostID     string
	UserID     string
	Title      string
	Caption    *string
	Visibility *string
	Tags       *[]string
	Media      []MediaUpload
}

// LikeResult reports the state of the post after a like toggle.
type LikeResult struct {
	Liked     bool
	LikeCount int64
}

// Default dimensions recorded when a file's real bounds cannot be decoded.
const (
	defaultMediaWidth  = 1920
	defaultMediaHeight = 1080
)

var (
	ErrPostNotFound      = apperror.New(apperror.KindNotFound, "Bài viết không tồn tại")
	ErrEmptyPost         = apperror.New(apperror.KindValidation, "Vui lòng nhập nội dung hoặc thêm ảnh/video")
	ErrNotPostOwnerEdit  = apperror.New(apperror.KindForbidden, "Bạn không có quyền chỉnh sửa bài viết này")
	ErrNotPostOwnerDel   = apperror.New(apperror.KindForbidden, "Bạn không có quyền xóa bài viết này")
	ErrNotPostOwnerRest  = apperror.New(apperror.KindForbidden, "Bạn không có quyền khôi phục bài viết này")
	ErrPostNotDeleted    = apperror.New(apperror.KindValidation, "Bài viết này chưa bị xóa")
	ErrPostAlreadyGone   = apperror.New(apperror.KindValidation, "Bài viết này đã bị xóa")
	ErrInvalidVisibility = apperror.New(apperror.KindValidation, "Chế độ hiển thị không hợp lệ")
)

type postUsecase struct {
	postRepo    repository.PostRepository
	accountRepo repository.AccountRepository
	uploader    Uploader
	logger      *zerolog.Logger
}

// NewPostUsecase creates a new instance of PostUsecase.
func NewPostUsecase(
	postRepo repository.PostRepository,
	accountRepo repository.AccountRepository,
	uploader Uploader,
	logger *zerolog.Logger,
) PostUsecase {
	return &postUsecase{
		postRepo:    postRepo,
		accountRepo: accountRepo,
		uploader:    uploader,
		logger:      logger,
	}
}

func (u *postUsecase) CreatePost(ctx context.Context, params CreatePostParams) (*model.Post, error) {
	caption := assembleCaption(params.Title, params.Caption)
	if strings.TrimSpace(caption) == "" && len(params.Media) == 0 {
		return nil, ErrEmptyPost
	}

	visibility := params.Visibility
	if visibility == "" {
		visibility = model.VisibilityPublic
	}
	if !model.ValidVisibility(visibility) {
		return nil, ErrInvalidVisibility
	}

	// Author name and avatar are denormalized onto the post at write time.
	author, err := u.accountRepo.GetAccount(ctx, params.AuthorID)
	if err != nil {
		return nil, err
	}

	media := u.storeMedia(ctx, params.Media)

	return u.postRepo.CreatePost(ctx, &model.Post{
		AuthorID:       params.AuthorID,
		AuthorName:     author.Name,
		AuthorAvatar:   author.AvatarURL,
		Caption:        caption,
		Media:          media,
		Tags:           params.Tags,
		Visibility:     visibility,
		PromotionLevel: 1,
	})
}

func (u *postUsecase) GetPost(ctx context.Context, id string) (*model.Post, error) {
	post, err := u.postRepo.GetPost(ctx, id)
	if err != nil {
		return nil, mapPostError(err)
	}
	if post.IsDeleted {
		return nil, ErrPostNotFound
	}

	return post, nil
}

func (u *postUsecase) UpdatePost(ctx context.Context, params UpdatePostParams) (*model.Post, error) {
	post, err := u.postRepo.GetPost(ctx, params.PostID)
	if err != nil {
		return nil, mapPostError(err)
	}

	if post.AuthorID != params.UserID {
		return nil, ErrNotPostOwnerEdit
	}

	update := repository.UpdatePostParams{
		Visibility: params.Visibility,
		Tags:       params.Tags,
	}

	if params.Caption != nil || params.Title != "" {
		body := post.Caption
		if params.Caption != nil {
			body = *params.Caption
		}
		caption := assembleCaption(params.Title, body)
		update.Caption = &caption
	}

	if len(params.Media) > 0 {
		media := append(post.Media, u.storeMedia(ctx, params.Media)...)
		update.Media = &media
	}

	if update.Caption == nil && update.Media == nil && update.Visibility == nil && update.Tags == nil {
		return post, nil
	}

	if update.Visibility != nil && !model.ValidVisibility(*update.Visibility) {
		return nil, ErrInvalidVisibility
	}

	updated, err := u.postRepo.UpdatePost(ctx, params.PostID, update)
	if err != nil {
		return nil, mapPostError(err)
	}

	return updated, nil
}

func (u *postUsecase) DeletePost(ctx context.Context, postID, userID string) error {
	post, err := u.postRepo.GetPost(ctx, postID)
	if err != nil {
		return mapPostError(err)
	}

	if post.AuthorID != userID {
		return ErrNotPostOwnerDel
	}
	if post.IsDeleted {
		return ErrPostAlreadyGone
	}

	_, err = u.postRepo.SetPostDeleted(ctx, postID, true)
	return err
}

func (u *postUsecase) RestorePost(ctx context.Context, postID, userID string) (*model.Post, error) {
	post, err := u.postRepo.GetPost(ctx, postID)
	if err != nil {
		return nil, mapPostError(err)
	}

	if post.AuthorID != userID {
		return nil, ErrNotPostOwnerRest
	}
	if !post.IsDeleted {
		return nil, ErrPostNotDeleted
	}

	restored, err := u.postRepo.SetPostDeleted(ctx, postID, false)
	if err != nil {
		return nil, err
	}

	return restored, nil
}

func (u *postUsecase) PublicFeed(ctx context.Context, sortBy string, limit int64) ([]*model.Post, error) {
	switch sortBy {
	case "", repository.PostSortNewest, repository.PostSortLiked,
		repository.PostSortViewed, repository.PostSortPromoted:
	default:
		sortBy = repository.PostSortNewest
	}

	return u.postRepo.ListPublicPosts(ctx, repository.FilterPostsParams{
		SortBy: sortBy,
		Limit:  limit,
	})
}

func (u *postUsecase) FeaturedPosts(ctx context.Context, limit int64) ([]*model.Post, error) {
	return u.postRepo.ListFeaturedPosts(ctx, limit)
}

func (u *postUsecase) MyPosts(ctx context.Context, userID string, limit int64) ([]*model.Post, error) {
	return u.postRepo.ListPostsByAuthor(ctx, userID, false, limit)
}

func (u *postUsecase) MyDeletedPosts(ctx context.Context, userID string, limit int64) ([]*model.Post, error) {
	return u.postRepo.ListPostsByAuthor(ctx, userID, true, limit)
}

func (u *postUsecase) ToggleLike(ctx context.Context, postID, userID string) (*LikeResult, error) {
	post, err := u.postRepo.GetPost(ctx, postID)
	if err != nil {
		return nil, mapPostError(err)
	}
	if post.IsDeleted {
		return nil, ErrPostNotFound
	}

	liked, likeCount, err := u.postRepo.ToggleLike(ctx, postID, userID)
	if err != nil {
		return nil, err
	}

	return &LikeResult{Liked: liked, LikeCount: likeCount}, nil
}

func (u *postUsecase) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	return u.postRepo.HasUserLiked(ctx, postID, userID)
}

// storeMedia uploads each file and collects the stored items. A file that
// fails to upload is logged and skipped rather than failing the whole post.
func (u *postUsecase) storeMedia(ctx context.Context, uploads []MediaUpload) []model.MediaItem {
	items := make([]model.MediaItem, 0, len(uploads))
	for _, upload := range uploads {
		mediaType := mediaTypeOf(upload.ContentType)
		if mediaType == "" {
			u.logger.Warn().
				Str("filename", upload.Filename).
				Str("content_type", upload.ContentType).
				Msg("skipping media with unsupported content type")
			continue
		}

		key := storageKey(upload.Filename)
		url, err := u.uploader.Upload(ctx, key, upload.ContentType, bytes.NewReader(upload.Data))
		if err != nil {
			u.logger.Error().Err(err).
				Str("filename", upload.Filename).
				Msg("failed to upload media, skipping file")
			continue
		}

		width, height := defaultMediaWidth, defaultMediaHeight
		if mediaType == model.MediaTypeImage {
			if cfg, _, err := image.DecodeConfig(bytes.NewReader(upload.Data)); err == nil {
				width, height = cfg.Width, cfg.Height
			}
		}

		items = append(items, model.MediaItem{
			Type:      mediaType,
			SourceURL: url,
			Width:     width,
			Height:    height,
		})
	}

	return items
}

// assembleCaption joins the optional title onto the caption body the way the
// mobile client expects to render it, title first.
func assembleCaption(title, caption string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return caption
	}
	if caption == "" {
		return title
	}

	return title + "\n" + caption
}

func mediaTypeOf(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return model.MediaTypeImage
	case strings.HasPrefix(contentType, "video/"):
		return model.MediaTypeVideo
	default:
		return ""
	}
}

func storageKey(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("media/%s%s", uuid.NewString(), ext)
}

func mapPostError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrPostNotFound
	}
	return err
}
