package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"google.golang.org/api/oauth2/v2"

	"github.com/zolachat/zola-api/internal/apperror"
	"github.com/zolachat/zola-api/internal/model"
	"github.com/zolachat/zola-api/internal/otp"
	"github.com/zolachat/zola-api/internal/repository"
	"github.com/zolachat/zola-api/shared/auth"
	"github.com/zolachat/zola-api/shared/mailer"
	"github.com/zolachat/zola-api/shared/provider"
	"github.com/zolachat/zola-api/shared/security"
)

// AuthUsecase defines the interface for authentication-related use cases.
type AuthUsecase interface {
	Login(ctx context.Context, params LoginParams) (*AuthResult, error)
	LoginWithGoogle(ctx context.Context, params GoogleLoginParams) (*AuthResult, error)
	SendRegisterOTP(ctx context.Context, email string) error
	VerifyRegisterOTP(ctx context.Context, email, code string) error
	RegisterFinal(ctx context.Context, params RegisterParams) (*model.Account, error)
	RequestPasswordReset(ctx context.Context, email string) (*PasswordResetRequest, error)
	VerifyResetOTP(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, params ResetPasswordParams) error
}

// LoginParams defines the parameters for password login.
type LoginParams struct {
	Email    string
	Password string
}

// GoogleLoginParams defines the parameters for Google login.
type GoogleLoginParams struct {
	IDToken string
	Email   string
	Name    string
	Avatar  string
}

// RegisterParams defines the parameters for finalizing a registration.
type RegisterParams struct {
	Email    string
	Username string
	Password string
}

// ResetPasswordParams defines the parameters for completing a password reset.
type ResetPasswordParams struct {
	Email           string
	OTP             string
	NewPassword     string
	ConfirmPassword string
}

// AuthResult bundles the authenticated account with its session token.
type AuthResult struct {
	Account *model.Account
	Token   string
}

// PasswordResetRequest reports the send budget after a reset OTP was issued.
type PasswordResetRequest struct {
	SendAttempts    int
	MaxSendAttempts int
}

const minPasswordLength = 6

var (
	// Deliberately the same message for unknown email and wrong password, so
	// callers cannot probe which emails are registered.
	ErrWrongCredentials = apperror.New(apperror.KindUnauthenticated, "Email hoặc mật khẩu không đúng")

	ErrGoogleAccount      = apperror.New(apperror.KindUnauthenticated, "Tài khoản này sử dụng đăng nhập Google")
	ErrPasswordNotSet     = apperror.New(apperror.KindUnauthenticated, "Tài khoản chưa được thiết lập mật khẩu")
	ErrEmailTaken         = apperror.New(apperror.KindConflict, "Email đã tồn tại")
	ErrAccountNotFound    = apperror.New(apperror.KindNotFound, "Tài khoản không tồn tại")
	ErrOTPNotFound        = apperror.New(apperror.KindValidation, "OTP không tồn tại")
	ErrOTPExpired         = apperror.New(apperror.KindValidation, "OTP hết hạn. Vui lòng yêu cầu mã mới")
	ErrOTPRateLimited     = apperror.New(apperror.KindRateLimited, "Bạn đã yêu cầu quá nhiều lần. Vui lòng thử lại sau 1 giờ")
	ErrOTPTooManyAttempts = apperror.New(apperror.KindRateLimited, "Bạn đã nhập sai quá nhiều lần. Vui lòng yêu cầu mã OTP mới")
	ErrPasswordMismatch   = apperror.New(apperror.KindValidation, "Mật khẩu xác nhận không khớp")
	ErrPasswordTooShort   = apperror.New(apperror.KindValidation, "Mật khẩu phải có ít nhất 6 ký tự")

	ErrGoogleTokenExpired  = apperror.New(apperror.KindUnauthenticated, "ID token đã hết hạn. Vui lòng đăng nhập lại.")
	ErrGoogleTokenInvalid  = apperror.New(apperror.KindUnauthenticated, "ID token không hợp lệ. Vui lòng đăng nhập lại.")
	ErrGoogleAudience      = apperror.New(apperror.KindUnauthenticated, "ID token không thuộc ứng dụng này. Vui lòng đăng nhập lại.")
	ErrGoogleVerifyFailed  = apperror.New(apperror.KindUpstream, "Xác thực Google thất bại")
	ErrEmailDeliveryFailed = apperror.New(apperror.KindUpstream, "Không thể gửi email. Vui lòng thử lại sau.")
)

// Mailer is the slice of shared/mailer the auth workflow needs.
type Mailer interface {
	Send(email mailer.Email) error
	SendHTML(to []string, subject, htmlBody string) error
}

// GoogleVerifier validates a Google ID token and returns its token info.
type GoogleVerifier interface {
	ValidateIDToken(ctx context.Context, idToken string) (*oauth2.Tokeninfo, error)
}

type authUsecase struct {
	accountRepo repository.AccountRepository
	resetOTP    *otp.Engine
	registerOTP *otp.Engine
	jwtAuth     auth.JWTAuthenticator
	mailer      Mailer
	google      GoogleVerifier

	resetExpiry     time.Duration
	registerExpiry  time.Duration
	maxSendAttempts int
}

// NewAuthUsecase creates a new instance of AuthUsecase. The two OTP engines
// implement the registration gate and the password-reset flow respectively.
func NewAuthUsecase(
	accountRepo repository.AccountRepository,
	resetOTP *otp.Engine,
	registerOTP *otp.Engine,
	jwtAuth auth.JWTAuthenticator,
	m Mailer,
	google GoogleVerifier,
	resetExpiry, registerExpiry time.Duration,
	maxSendAttempts int,
) AuthUsecase {
	return &authUsecase{
		accountRepo:     accountRepo,
		resetOTP:        resetOTP,
		registerOTP:     registerOTP,
		jwtAuth:         jwtAuth,
		mailer:          m,
		google:          google,
		resetExpiry:     resetExpiry,
		registerExpiry:  registerExpiry,
		maxSendAttempts: maxSendAttempts,
	}
}

func (u *authUsecase) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	account, err := u.accountRepo.GetAccountByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrWrongCredentials
		}

		return nil, err
	}

	if account.Provider != model.ProviderEmail {
		return nil, ErrGoogleAccount
	}

	if account.PasswordHash == "" {
		return nil, ErrPasswordNotSet
	}

	if ok, err := security.VerifyPassword(params.Password, account.PasswordHash); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrWrongCredentials
	}

	return u.createAuthResult(account)
}

func (u *authUsecase) LoginWithGoogle(ctx context.Context, params GoogleLoginParams) (*AuthResult, error) {
	tokenInfo, err := u.google.ValidateIDToken(ctx, params.IDToken)
	if err != nil {
		return nil, mapGoogleError(err)
	}

	googleID := tokenInfo.UserId
	provider := model.ProviderGoogle

	account, err := u.accountRepo.GetAccountByEmailOrGoogleID(ctx, params.Email, googleID)
	switch {
	case err == nil:
		account, err = u.accountRepo.UpdateAccount(ctx, account.ID.Hex(), repository.UpdateAccountParams{
			Name:      &params.Name,
			AvatarURL: &params.Avatar,
			Provider:  &provider,
			GoogleID:  &googleID,
		})
		if err != nil {
			return nil, err
		}
	case errors.Is(err, mongo.ErrNoDocuments):
		account, err = u.accountRepo.CreateAccount(ctx, &model.Account{
			Email:     params.Email,
			Name:      params.Name,
			AvatarURL: params.Avatar,
			Provider:  provider,
			GoogleID:  googleID,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return u.createAuthResult(account)
}

func (u *authUsecase) SendRegisterOTP(ctx context.Context, email string) error {
	issued, err := u.registerOTP.Issue(ctx, email)
	if err != nil {
		if errors.Is(err, otp.ErrRateLimited) {
			return ErrOTPRateLimited
		}
		return err
	}

	if err := u.mailer.Send(mailer.Email{
		To:      []string{email},
		Subject: "Mã OTP Zola",
		Body: fmt.Sprintf(
			"Mã OTP của bạn là: %s. Mã sẽ hết hạn sau %d phút.",
			issued.Code,
			int(u.registerExpiry.Minutes()),
		),
	}); err != nil {
		return apperror.Wrap(apperror.KindUpstream, ErrEmailDeliveryFailed.Message, err)
	}

	return nil
}

// VerifyRegisterOTP checks the registration-gate code and deletes the record
// on success, so a code cannot be replayed into a second registration.
func (u *authUsecase) VerifyRegisterOTP(ctx context.Context, email, code string) error {
	if err := u.registerOTP.Verify(ctx, email, code); err != nil {
		return mapOTPError(err)
	}

	return u.registerOTP.Clear(ctx, email)
}

func (u *authUsecase) RegisterFinal(ctx context.Context, params RegisterParams) (*model.Account, error) {
	passwordHash, err := security.HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	account, err := u.accountRepo.CreateAccount(ctx, &model.Account{
		Email:        params.Email,
		Name:         params.Username,
		PasswordHash: passwordHash,
		Provider:     model.ProviderEmail,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}

		return nil, err
	}

	return account, nil
}

func (u *authUsecase) RequestPasswordReset(ctx context.Context, email string) (*PasswordResetRequest, error) {
	account, err := u.accountRepo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}

		return nil, err
	}

	if account.Provider != model.ProviderEmail {
		return nil, ErrGoogleAccount
	}

	issued, err := u.resetOTP.Issue(ctx, email)
	if err != nil {
		if errors.Is(err, otp.ErrRateLimited) {
			return nil, ErrOTPRateLimited
		}
		return nil, err
	}

	htmlBody := resetOTPEmailBody(issued.Code, u.resetExpiry)
	if err := u.mailer.SendHTML([]string{account.Email}, "Mã xác thực đặt lại mật khẩu Zola", htmlBody); err != nil {
		return nil, apperror.Wrap(apperror.KindUpstream, ErrEmailDeliveryFailed.Message, err)
	}

	return &PasswordResetRequest{
		SendAttempts:    issued.SendAttempts,
		MaxSendAttempts: u.maxSendAttempts,
	}, nil
}

func (u *authUsecase) VerifyResetOTP(ctx context.Context, email, code string) error {
	if err := u.resetOTP.Verify(ctx, email, code); err != nil {
		return mapOTPError(err)
	}

	return nil
}

// ResetPassword re-runs the full OTP verification rather than trusting a
// prior VerifyResetOTP call, so a stale client cannot complete a reset with
// an already-superseded code.
func (u *authUsecase) ResetPassword(ctx context.Context, params ResetPasswordParams) error {
	if params.NewPassword != params.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if len(params.NewPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	if err := u.resetOTP.Verify(ctx, params.Email, params.OTP); err != nil {
		return mapOTPError(err)
	}

	account, err := u.accountRepo.GetAccountByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrAccountNotFound
		}

		return err
	}

	passwordHash, err := security.HashPassword(params.NewPassword)
	if err != nil {
		return err
	}

	if _, err := u.accountRepo.UpdateAccount(ctx, account.ID.Hex(), repository.UpdateAccountParams{
		PasswordHash: &passwordHash,
	}); err != nil {
		return err
	}

	return u.resetOTP.Clear(ctx, params.Email)
}

func (u *authUsecase) createAuthResult(account *model.Account) (*AuthResult, error) {
	token, err := u.jwtAuth.GenerateSessionToken(account.ID.Hex(), account.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Account: account, Token: token}, nil
}

// mapOTPError translates engine errors into domain errors with display
// messages. The invalid-code case keeps the remaining-attempt count.
func mapOTPError(err error) error {
	var invalid *otp.InvalidCodeError
	switch {
	case errors.Is(err, otp.ErrNoOTP):
		return ErrOTPNotFound
	case errors.Is(err, otp.ErrExpired):
		return ErrOTPExpired
	case errors.Is(err, otp.ErrTooManyAttempts):
		return ErrOTPTooManyAttempts
	case errors.As(err, &invalid):
		return apperror.Wrap(
			apperror.KindValidation,
			fmt.Sprintf("Mã OTP không đúng. Bạn còn %d lần thử", invalid.Remaining),
			err,
		)
	default:
		return err
	}
}

func mapGoogleError(err error) error {
	switch {
	case errors.Is(err, provider.ErrExpiredIDToken):
		return ErrGoogleTokenExpired
	case errors.Is(err, provider.ErrInvalidIDToken):
		return ErrGoogleTokenInvalid
	case errors.Is(err, provider.ErrInvalidGoogleAudience):
		return ErrGoogleAudience
	default:
		return apperror.Wrap(apperror.KindUpstream, ErrGoogleVerifyFailed.Message, err)
	}
}

// resetOTPEmailBody renders the password-reset email. The expiry shown always
// matches the configured window instead of a hard-coded figure.
func resetOTPEmailBody(code string, expiry time.Duration) string {
	minutes := int(expiry.Minutes())
	return fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
			<div style="background-color: #f5f5f5; padding: 20px; border-radius: 8px;">
				<h2 style="color: #333; text-align: center;">Đặt Lại Mật Khẩu</h2>
				<p style="color: #666; font-size: 16px;">
					Bạn đã yêu cầu đặt lại mật khẩu cho tài khoản Zola của mình.
				</p>
				<div style="background-color: #fff; padding: 20px; border-radius: 8px; text-align: center; margin: 20px 0;">
					<p style="color: #999; font-size: 14px; margin: 0 0 10px 0;">Mã xác thực của bạn là:</p>
					<p style="font-size: 32px; font-weight: bold; color: #4285f4; letter-spacing: 5px; margin: 0;">
						%s
					</p>
				</div>
				<p style="color: #666; font-size: 14px;">
					Mã này sẽ hết hạn sau <strong>%d phút</strong>.
				</p>
				<p style="color: #999; font-size: 12px;">
					Nếu bạn không yêu cầu đặt lại mật khẩu, vui lòng bỏ qua email này.
				</p>
			</div>
		</div>
	`, code, minutes)
}
