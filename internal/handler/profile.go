package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zolachat/zola-api/internal/usecase"
)

// ProfileHandler serves the profile endpoints.
type ProfileHandler struct {
	profileUsecase usecase.ProfileUsecase
	validator      *requestValidator
	logger         *zerolog.Logger
}

// NewProfileHandler creates a new instance of ProfileHandler.
func NewProfileHandler(
	profileUsecase usecase.ProfileUsecase,
	validator *requestValidator,
	logger *zerolog.Logger,
) *ProfileHandler {
	return &ProfileHandler{
		profileUsecase: profileUsecase,
		validator:      validator,
		logger:         logger,
	}
}

// Routes registers the profile endpoints. All of them require a bearer token.
func (h *ProfileHandler) Routes(r chi.Router) {
	r.Get("/me", h.getProfile)
	r.Patch("/", h.updateProfile)
}

func (h *ProfileHandler) getProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	account, err := h.profileUsecase.GetProfile(r.Context(), claims.AccountID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{"account": toAccountResponse(account)})
}

type updateProfileRequest struct {
	Name  *string `json:"name"  validate:"omitempty,min=2"`
	Phone *string `json:"phone" validate:"omitempty,min=8,max=15"`
}

func (h *ProfileHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondValidationError(w, "invalid request payload")
		return
	}
	if msg := h.validator.check(req); msg != "" {
		respondValidationError(w, msg)
		return
	}

	account, err := h.profileUsecase.UpdateProfile(r.Context(), claims.AccountID, usecase.UpdateProfileParams{
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{"account": toAccountResponse(account)})
}
