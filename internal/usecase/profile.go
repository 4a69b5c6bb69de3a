package usecase

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/zolachat/zola-api/internal/model"
	"github.com/zolachat/zola-api/internal/repository"
)

// ProfileUsecase defines the interface for profile-related use cases.
type ProfileUsecase interface {
	GetProfile(ctx context.Context, accountID string) (*model.Account, error)
	UpdateProfile(ctx context.Context, accountID string, params UpdateProfileParams) (*model.Account, error)
}

// UpdateProfileParams defines the optional profile fields a user may change.
type UpdateProfileParams struct {
	Name  *string
	Phone *string
}

type profileUsecase struct {
	accountRepo repository.AccountRepository
}

// NewProfileUsecase creates a new instance of ProfileUsecase.
func NewProfileUsecase(accountRepo repository.AccountRepository) ProfileUsecase {
	return &profileUsecase{accountRepo: accountRepo}
}

func (u *profileUsecase) GetProfile(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := u.accountRepo.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}

		return nil, err
	}

	return account, nil
}

func (u *profileUsecase) UpdateProfile(
	ctx context.Context,
	accountID string,
	params UpdateProfileParams,
) (*model.Account, error) {
	if params.Name == nil && params.Phone == nil {
		return u.GetProfile(ctx, accountID)
	}

	account, err := u.accountRepo.UpdateAccount(ctx, accountID, repository.UpdateAccountParams{
		Name:  params.Name,
		Phone: params.Phone,
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}

		return nil, err
	}

	return account, nil
}
