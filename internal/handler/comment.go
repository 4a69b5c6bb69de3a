package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zolachat/zola-api/internal/usecase"
)

// CommentHandler serves the comment endpoints.
type CommentHandler struct {
	commentUsecase usecase.CommentUsecase
	validator      *requestValidator
	logger         *zerolog.Logger
}

// NewCommentHandler creates a new instance of CommentHandler.
func NewCommentHandler(
	commentUsecase usecase.CommentUsecase,
	validator *requestValidator,
	logger *zerolog.Logger,
) *CommentHandler {
	return &CommentHandler{
		commentUsecase: commentUsecase,
		validator:      validator,
		logger:         logger,
	}
}

// PublicRoutes registers the read endpoints that need no session.
func (h *CommentHandler) PublicRoutes(r chi.Router) {
	r.Get("/post/{postId}", h.listByPost)
}

// ProtectedRoutes registers the endpoints that require a bearer token.
func (h *CommentHandler) ProtectedRoutes(r chi.Router) {
	r.Post("/", h.createComment)
	r.Put("/{commentId}", h.updateComment)
	r.Delete("/{commentId}", h.deleteComment)
}

func (h *CommentHandler) listByPost(w http.ResponseWriter, r *http.Request) {
	comments, err := h.commentUsecase.ListByPost(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{"comments": comments})
}

type createCommentRequest struct {
	TargetID string `json:"targetId" validate:"required"`
	Content  string `json:"content"  validate:"required"`
	IsReply  bool   `json:"isReply"`
}

func (h *CommentHandler) createComment(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	var req createCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondValidationError(w, "invalid request payload")
		return
	}
	if msg := h.validator.check(req); msg != "" {
		respondValidationError(w, msg)
		return
	}

	comment, err := h.commentUsecase.CreateComment(r.Context(), usecase.CreateCommentParams{
		TargetID: req.TargetID,
		IsReply:  req.IsReply,
		AuthorID: claims.AccountID,
		Content:  req.Content,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusCreated, map[string]any{"comment": comment})
}

type updateCommentRequest struct {
	Content string `json:"content" validate:"required"`
}

func (h *CommentHandler) updateComment(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	var req updateCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondValidationError(w, "invalid request payload")
		return
	}
	if msg := h.validator.check(req); msg != "" {
		respondValidationError(w, msg)
		return
	}

	comment, err := h.commentUsecase.UpdateComment(r.Context(), usecase.UpdateCommentParams{
		CommentID: chi.URLParam(r, "commentId"),
		UserID:    claims.AccountID,
		Content:   req.Content,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{"comment": comment})
}

func (h *CommentHandler) deleteComment(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	if err := h.commentUsecase.DeleteComment(r.Context(), chi.URLParam(r, "commentId"), claims.AccountID); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondMessage(w, http.StatusOK, "Comment deleted")
}
