package usecase

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/zolachat/zola-api/internal/apperror"
	"github.com/zolachat/zola-api/internal/model"
	"github.com/zolachat/zola-api/internal/repository"
)

// CommentUsecase defines the interface for comment-related use cases.
type CommentUsecase interface {
	ListByPost(ctx context.Context, postID string) ([]*CommentWithReplies, error)
	CreateComment(ctx context.Context, params CreateCommentParams) (*model.Comment, error)
	UpdateComment(ctx context.Context, params UpdateCommentParams) (*model.Comment, error)
	DeleteComment(ctx context.Context, commentID, userID string) error
}

// CommentWithReplies is a top-level comment with its direct replies. Replies
// are nested a single level, never deeper.
type CommentWithReplies struct {
	*model.Comment
	Replies []*model.Comment `json:"replies"`
}

// CreateCommentParams defines the parameters for creating a comment. TargetID
// is either a post ID or, for a reply, a comment ID.
type CreateCommentParams struct {
	TargetID string
	IsReply  bool
	AuthorID string
	Content  string
}

// UpdateCommentParams defines the parameters for editing a comment.
type UpdateCommentParams struct {
	CommentID string
	UserID    string
	Content   string
}

var (
	ErrCommentNotFound    = apperror.New(apperror.KindNotFound, "Comment not found")
	ErrEmptyComment       = apperror.New(apperror.KindValidation, "Content is required")
	ErrNotCommentOwner    = apperror.New(apperror.KindForbidden, "You are not allowed to edit this comment")
	ErrNotCommentOwnerDel = apperror.New(apperror.KindForbidden, "You are not allowed to delete this comment")
)

type commentUsecase struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	accountRepo repository.AccountRepository
}

// NewCommentUsecase creates a new instance of CommentUsecase.
func NewCommentUsecase(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	accountRepo repository.AccountRepository,
) CommentUsecase {
	return &commentUsecase{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		accountRepo: accountRepo,
	}
}

func (u *commentUsecase) ListByPost(ctx context.Context, postID string) ([]*CommentWithReplies, error) {
	post, err := u.postRepo.GetPost(ctx, postID)
	if err != nil {
		return nil, mapPostError(err)
	}
	if post.IsDeleted {
		return nil, ErrPostNotFound
	}

	comments, err := u.commentRepo.ListCommentsByTarget(ctx, postID, 0)
	if err != nil {
		return nil, err
	}

	result := make([]*CommentWithReplies, 0, len(comments))
	for _, comment := range comments {
		replies, err := u.commentRepo.ListCommentsByTarget(ctx, comment.ID.Hex(), 0)
		if err != nil {
			return nil, err
		}
		if replies == nil {
			replies = []*model.Comment{}
		}

		result = append(result, &CommentWithReplies{
			Comment: comment,
			Replies: replies,
		})
	}

	return result, nil
}

func (u *commentUsecase) CreateComment(ctx context.Context, params CreateCommentParams) (*model.Comment, error) {
	if strings.TrimSpace(params.Content) == "" {
		return nil, ErrEmptyComment
	}

	if params.IsReply {
		parent, err := u.commentRepo.GetComment(ctx, params.TargetID)
		if err != nil {
			return nil, mapCommentError(err)
		}
		if parent.IsDeleted {
			return nil, ErrCommentNotFound
		}
	} else {
		post, err := u.postRepo.GetPost(ctx, params.TargetID)
		if err != nil {
			return nil, mapPostError(err)
		}
		if post.IsDeleted {
			return nil, ErrPostNotFound
		}
	}

	// Author name and avatar are denormalized onto the comment at write time.
	author, err := u.accountRepo.GetAccount(ctx, params.AuthorID)
	if err != nil {
		return nil, err
	}

	comment, err := u.commentRepo.CreateComment(ctx, &model.Comment{
		TargetID:     params.TargetID,
		AuthorID:     params.AuthorID,
		AuthorName:   author.Name,
		AuthorAvatar: author.AvatarURL,
		Content:      params.Content,
	})
	if err != nil {
		return nil, err
	}

	if !params.IsReply {
		if err := u.postRepo.IncrementCommentCount(ctx, params.TargetID, 1); err != nil {
			return nil, err
		}
	}

	return comment, nil
}

func (u *commentUsecase) UpdateComment(ctx context.Context, params UpdateCommentParams) (*model.Comment, error) {
	if strings.TrimSpace(params.Content) == "" {
		return nil, ErrEmptyComment
	}

	comment, err := u.commentRepo.GetComment(ctx, params.CommentID)
	if err != nil {
		return nil, mapCommentError(err)
	}
	if comment.IsDeleted {
		return nil, ErrCommentNotFound
	}

	if comment.AuthorID != params.UserID {
		return nil, ErrNotCommentOwner
	}

	updated, err := u.commentRepo.UpdateComment(ctx, params.CommentID, repository.UpdateCommentParams{
		Content: &params.Content,
	})
	if err != nil {
		return nil, mapCommentError(err)
	}

	return updated, nil
}

func (u *commentUsecase) DeleteComment(ctx context.Context, commentID, userID string) error {
	comment, err := u.commentRepo.GetComment(ctx, commentID)
	if err != nil {
		return mapCommentError(err)
	}
	if comment.IsDeleted {
		return ErrCommentNotFound
	}

	if comment.AuthorID != userID {
		return ErrNotCommentOwnerDel
	}

	deleted := true
	if _, err := u.commentRepo.UpdateComment(ctx, commentID, repository.UpdateCommentParams{
		IsDeleted: &deleted,
	}); err != nil {
		return mapCommentError(err)
	}

	// Only top-level comments count toward the post counter. Replies target a
	// comment, not a post, so their decrement matches no post and is a no-op.
	return u.postRepo.IncrementCommentCount(ctx, comment.TargetID, -1)
}

func mapCommentError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrCommentNotFound
	}
	return err
}
