package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zolachat/zola-api/internal/model"
	"github.com/zolachat/zola-api/internal/usecase"
)

// AuthHandler serves the authentication endpoints.
type AuthHandler struct {
	authUsecase usecase.AuthUsecase
	validator   *requestValidator
	logger      *zerolog.Logger
}

// NewAuthHandler creates a new instance of AuthHandler.
func NewAuthHandler(authUsecase usecase.AuthUsecase, validator *requestValidator, logger *zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		validator:   validator,
		logger:      logger,
	}
}

// Routes registers the public auth endpoints. Logout is registered separately
// because it requires a bearer token.
func (h *AuthHandler) Routes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/google", h.loginWithGoogle)
	r.Post("/send-otp", h.sendRegisterOTP)
	r.Post("/verify-otp", h.verifyRegisterOTP)
	r.Post("/register-final", h.registerFinal)
	r.Post("/forgot-password", h.forgotPassword)
	r.Post("/verify-otp-reset", h.verifyResetOTP)
	r.Post("/reset-password", h.resetPassword)
}

// accountResponse is the account shape returned to clients. The password hash
// and OTP sub-record never leave the server.
type accountResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Provider string `json:"provider"`
}

func toAccountResponse(account *model.Account) accountResponse {
	return accountResponse{
		ID:       account.ID.Hex(),
		Email:    account.Email,
		Name:     account.Name,
		Avatar:   account.AvatarURL,
		Phone:    account.Phone,
		Provider: account.Provider,
	}
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondValidationError(w, "invalid request payload")
		return
	}
	if msg := h.validator.check(req); msg != "" {
		respondValidationError(w, msg)
		return
	}

	result, err := h.authUsecase.Login(r.Context(), usecase.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{
		"account": toAccountResponse(result.Account),
		"token":   result.Token,
	})
}

type googleLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
	Email   string `json:"email"   validate:"required,email"`
	Name    string `json:"name"    validate:"required"`
	Avatar  string `json:"avatar"`
}

func (h *AuthHandler) loginWithGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondValidationError(w, "invalid request payload")
		return
	}
	if msg := h.validator.check(req); msg != "" {
		respondValidationError(w, msg)
		return
	}

	result, err := h.authUsecase.LoginWithGoogle(r.Context(), usecase.GoogleLoginParams{
		IDToken: req.IDToken,
		Email:   req.Email,
		Name:    req.Name,
		Avatar:  req.Avatar,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{
		"account": toAccountResponse(result.Account),
		"token":   result.Token,
	})
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *AuthHandler) sendRegisterOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondValidationError(w, "invalid request payload")
		return
	}
	if msg := h.validator.check(req); msg != "" {
		respondValidationError(w, msg)
		return
	}

	if err := h.authUsecase.SendRegisterOTP(r.Context(), req.Email); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondMessage(w, http.StatusOK, "OTP đã được gửi đến email của bạn")
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp"   validate:"required,len=6,numeric"`
}

func (h *AuthHandler) verifyRegisterOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		respondValidationError(w, "invalid request payload")
		return
	}
	if msg := h.validator.check(req); msg != "" {
		respondValidationError(w, msg)
		return
	}

	if err := h.authUsecase.VerifyRegisterOTP(r.Context(), req.Email, req.OTP); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondMessage(w, http.StatusOK, "Xác thực OTP thành công")
}

type registerRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Username string `json:"username" validate:"required,min=2"`
	Password string `json:"password" validate:"required,min=6"`
}

func (h *AuthHandler) registerFinal(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondValidationError(w, "invalid request payload")
		return
	}
	if msg := h.validator.check(req); msg != "" {
		respondValidationError(w, msg)
		return
	}

	account, err := h.authUsecase.RegisterFinal(r.Context(), usecase.RegisterParams{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusCreated, map[string]any{
		"account": toAccountResponse(account),
	})
}

func (h *AuthHandler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondValidationError(w, "invalid request payload")
		return
	}
	if msg := h.validator.check(req); msg != "" {
		respondValidationError(w, msg)
		return
	}

	result, err := h.authUsecase.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "Mã xác thực đã được gửi đến email của bạn",
		Data: map[string]any{
			"sendAttempts":    result.SendAttempts,
			"maxSendAttempts": result.MaxSendAttempts,
		},
	})
}

func (h *AuthHandler) verifyResetOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		respondValidationError(w, "invalid request payload")
		return
	}
	if msg := h.validator.check(req); msg != "" {
		respondValidationError(w, msg)
		return
	}

	if err := h.authUsecase.VerifyResetOTP(r.Context(), req.Email, req.OTP); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondMessage(w, http.StatusOK, "Xác thực OTP thành công")
}

type resetPasswordRequest struct {
	Email           string `json:"email"           validate:"required,email"`
	OTP             string `json:"otp"             validate:"required,len=6,numeric"`
	NewPassword     string `json:"newPassword"     validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

func (h *AuthHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondValidationError(w, "invalid request payload")
		return
	}
	if msg := h.validator.check(req); msg != "" {
		respondValidationError(w, msg)
		return
	}

	if err := h.authUsecase.ResetPassword(r.Context(), usecase.ResetPasswordParams{
		Email:           req.Email,
		OTP:             req.OTP,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	}); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondMessage(w, http.StatusOK, "Đặt lại mật khẩu thành công")
}

// logout is a no-op on the server: the session token is stateless and simply
// expires. The endpoint exists so clients have a uniform place to end a
// session.
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	respondMessage(w, http.StatusOK, "Đăng xuất thành công")
}
