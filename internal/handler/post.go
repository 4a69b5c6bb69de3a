package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zolachat/zola-api/internal/apperror"
	"github.com/zolachat/zola-api/internal/repository"
	"github.com/zolachat/zola-api/internal/usecase"
)

var (
	errTooManyFiles = apperror.New(apperror.KindValidation, "Chỉ được tải lên tối đa 10 tệp")
	errFileTooLarge = apperror.New(apperror.KindValidation, "Tệp vượt quá kích thước cho phép (10MB)")
	errBadFileType  = apperror.New(apperror.KindValidation, "Chỉ chấp nhận tệp ảnh hoặc video")
)

// Upload limits for post media.
const (
	maxMediaFiles    = 10
	maxMediaFileSize = 10 << 20 // 10 MB per file
	maxFormMemory    = 32 << 20
)

// PostHandler serves the post and feed endpoints.
type PostHandler struct {
	postUsecase usecase.PostUsecase
	logger      *zerolog.Logger
}

// NewPostHandler creates a new instance of PostHandler.
func NewPostHandler(postUsecase usecase.PostUsecase, logger *zerolog.Logger) *PostHandler {
	return &PostHandler{
		postUsecase: postUsecase,
		logger:      logger,
	}
}

// PublicRoutes registers the feed endpoints that need no session.
func (h *PostHandler) PublicRoutes(r chi.Router) {
	r.Get("/", h.publicFeed)
	r.Get("/featured", h.featuredPosts)
	r.Get("/{postId}", h.getPost)
}

// ProtectedRoutes registers the endpoints that require a bearer token.
func (h *PostHandler) ProtectedRoutes(r chi.Router) {
	r.Post("/", h.createPost)
	r.Get("/my", h.myPosts)
	r.Get("/deleted", h.myDeletedPosts)
	r.Put("/{postId}", h.updatePost)
	r.Delete("/{postId}", h.deletePost)
	r.Post("/{postId}/restore", h.restorePost)
	r.Post("/{postId}/like", h.toggleLike)
	r.Get("/{postId}/liked", h.hasLiked)
}

// feedSortParam maps the client's sort names onto stored fields.
func feedSortParam(sort string) string {
	switch sort {
	case "likes":
		return repository.PostSortLiked
	case "views":
		return repository.PostSortViewed
	case "promoted":
		return repository.PostSortPromoted
	case "latest", "":
		return repository.PostSortNewest
	default:
		return repository.PostSortNewest
	}
}

func limitParam(r *http.Request) int64 {
	limit, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func (h *PostHandler) publicFeed(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postUsecase.PublicFeed(r.Context(), feedSortParam(r.URL.Query().Get("sort")), limitParam(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{"posts": posts})
}

func (h *PostHandler) featuredPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postUsecase.FeaturedPosts(r.Context(), limitParam(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{"posts": posts})
}

func (h *PostHandler) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.postUsecase.GetPost(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{"post": post})
}

func (h *PostHandler) myPosts(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	posts, err := h.postUsecase.MyPosts(r.Context(), claims.AccountID, limitParam(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{"posts": posts})
}

func (h *PostHandler) myDeletedPosts(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	posts, err := h.postUsecase.MyDeletedPosts(r.Context(), claims.AccountID, limitParam(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{"posts": posts})
}

func (h *PostHandler) createPost(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		respondValidationError(w, "invalid multipart form")
		return
	}

	media, err := h.readMediaFiles(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	var tags []string
	if raw := r.FormValue("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	post, err := h.postUsecase.CreatePost(r.Context(), usecase.CreatePostParams{
		AuthorID:   claims.AccountID,
		Title:      r.FormValue("title"),
		Caption:    r.FormValue("caption"),
		Visibility: r.FormValue("visibility"),
		Tags:       tags,
		Media:      media,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusCreated, map[string]any{"post": post})
}

func (h *PostHandler) updatePost(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		respondValidationError(w, "invalid multipart form")
		return
	}

	media, err := h.readMediaFiles(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	params := usecase.UpdatePostParams{
		PostID: chi.URLParam(r, "postId"),
		UserID: claims.AccountID,
		Title:  r.FormValue("title"),
		Media:  media,
	}
	if r.Form.Has("caption") {
		caption := r.FormValue("caption")
		params.Caption = &caption
	}
	if r.Form.Has("visibility") {
		visibility := r.FormValue("visibility")
		params.Visibility = &visibility
	}
	if r.Form.Has("tags") {
		var tags []string
		for _, tag := range strings.Split(r.FormValue("tags"), ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		params.Tags = &tags
	}

	post, err := h.postUsecase.UpdatePost(r.Context(), params)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{"post": post})
}

func (h *PostHandler) deletePost(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	if err := h.postUsecase.DeletePost(r.Context(), chi.URLParam(r, "postId"), claims.AccountID); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondMessage(w, http.StatusOK, "Đã xóa bài viết")
}

func (h *PostHandler) restorePost(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	post, err := h.postUsecase.RestorePost(r.Context(), chi.URLParam(r, "postId"), claims.AccountID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{"post": post})
}

func (h *PostHandler) toggleLike(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	result, err := h.postUsecase.ToggleLike(r.Context(), chi.URLParam(r, "postId"), claims.AccountID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{
		"liked":     result.Liked,
		"likeCount": result.LikeCount,
	})
}

func (h *PostHandler) hasLiked(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	liked, err := h.postUsecase.HasLiked(r.Context(), chi.URLParam(r, "postId"), claims.AccountID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{"liked": liked})
}

// readMediaFiles pulls the "media" form files into memory. Files that are too
// large or not image/video are rejected outright rather than skipped, so the
// client learns about the bad file instead of silently losing it.
func (h *PostHandler) readMediaFiles(r *http.Request) ([]usecase.MediaUpload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	files := r.MultipartForm.File["media"]
	if len(files) > maxMediaFiles {
		return nil, errTooManyFiles
	}

	uploads := make([]usecase.MediaUpload, 0, len(files))
	for _, header := range files {
		upload, err := readMediaFile(header)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}

	return uploads, nil
}

func readMediaFile(header *multipart.FileHeader) (usecase.MediaUpload, error) {
	if header.Size > maxMediaFileSize {
		return usecase.MediaUpload{}, errFileTooLarge
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "video/") {
		return usecase.MediaUpload{}, errBadFileType
	}

	file, err := header.Open()
	if err != nil {
		return usecase.MediaUpload{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxMediaFileSize))
	if err != nil {
		return usecase.MediaUpload{}, err
	}

	return usecase.MediaUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}
