package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"google.golang.org/api/oauth2/v2"

	"github.com/zolachat/zola-api/internal/apperror"
	"github.com/zolachat/zola-api/internal/model"
	"github.com/zolachat/zola-api/internal/otp"
	"github.com/zolachat/zola-api/internal/repository"
	"github.com/zolachat/zola-api/shared/auth"
	"github.com/zolachat/zola-api/shared/mailer"
	"github.com/zolachat/zola-api/shared/security"
)

// fakeAccountRepo is an in-memory AccountRepository.
type fakeAccountRepo struct {
	accounts []*model.Account
}

func (r *fakeAccountRepo) findByEmail(email string) *model.Account {
	email = strings.ToLower(email)
	for _, a := range r.accounts {
		if a.Email == email {
			return a
		}
	}
	return nil
}

func (r *fakeAccountRepo) findByID(id string) *model.Account {
	for _, a := range r.accounts {
		if a.ID.Hex() == id {
			return a
		}
	}
	return nil
}

func duplicateKeyError() error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
}

func (r *fakeAccountRepo) CreateAccount(_ context.Context, account *model.Account) (*model.Account, error) {
	account.Email = strings.ToLower(account.Email)
	if r.findByEmail(account.Email) != nil {
		return nil, duplicateKeyError()
	}

	account.ID = bson.NewObjectID()
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	r.accounts = append(r.accounts, account)
	return account, nil
}

func (r *fakeAccountRepo) GetAccount(_ context.Context, id string) (*model.Account, error) {
	if a := r.findByID(id); a != nil {
		return a, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeAccountRepo) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	if a := r.findByEmail(email); a != nil {
		return a, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeAccountRepo) GetAccountByEmailOrGoogleID(
	_ context.Context,
	email, googleID string,
) (*model.Account, error) {
	if a := r.findByEmail(email); a != nil {
		return a, nil
	}
	for _, a := range r.accounts {
		if a.GoogleID != "" && a.GoogleID == googleID {
			return a, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeAccountRepo) UpdateAccount(
	_ context.Context,
	id string,
	params repository.UpdateAccountParams,
) (*model.Account, error) {
	a := r.findByID(id)
	if a == nil {
		return nil, mongo.ErrNoDocuments
	}

	if params.Name != nil {
		a.Name = *params.Name
	}
	if params.AvatarURL != nil {
		a.AvatarURL = *params.AvatarURL
	}
	if params.Phone != nil {
		a.Phone = *params.Phone
	}
	if params.Provider != nil {
		a.Provider = *params.Provider
	}
	if params.GoogleID != nil {
		a.GoogleID = *params.GoogleID
	}
	if params.PasswordHash != nil {
		a.PasswordHash = *params.PasswordHash
	}
	a.UpdatedAt = time.Now()
	return a, nil
}

func (r *fakeAccountRepo) SetAccountOTP(_ context.Context, email string, rec *otp.Record) error {
	a := r.findByEmail(email)
	if a == nil {
		return mongo.ErrNoDocuments
	}

	a.OTP = rec.Code
	a.OTPExpiry = rec.ExpiresAt
	a.OTPAttempts = rec.Attempts
	a.OTPSendAttempts = rec.SendAttempts
	a.OTPLastSendTime = rec.LastSentAt
	return nil
}

func (r *fakeAccountRepo) IncrementAccountOTPAttempts(_ context.Context, email string, max int) (int, error) {
	a := r.findByEmail(email)
	if a == nil || a.OTPAttempts >= max {
		return 0, otp.ErrAttemptsExhausted
	}
	a.OTPAttempts++
	return a.OTPAttempts, nil
}

func (r *fakeAccountRepo) ClearAccountOTP(_ context.Context, email string) error {
	a := r.findByEmail(email)
	if a == nil {
		return nil
	}

	a.OTP = ""
	a.OTPExpiry = time.Time{}
	a.OTPAttempts = 0
	a.OTPSendAttempts = 0
	a.OTPLastSendTime = time.Time{}
	return nil
}

// fakeOTPStore is an in-memory otp.Store for the registration gate.
type fakeOTPStore struct {
	records map[string]*otp.Record
}

func newFakeOTPStore() *fakeOTPStore {
	return &fakeOTPStore{records: make(map[string]*otp.Record)}
}

func (s *fakeOTPStore) Get(_ context.Context, email string) (*otp.Record, error) {
	rec, ok := s.records[email]
	if !ok {
		return nil, otp.ErrNoRecord
	}
	copied := *rec
	return &copied, nil
}

func (s *fakeOTPStore) Put(_ context.Context, email string, rec *otp.Record) error {
	copied := *rec
	s.records[email] = &copied
	return nil
}

func (s *fakeOTPStore) IncrementAttempts(_ context.Context, email string, max int) (int, error) {
	rec, ok := s.records[email]
	if !ok || rec.Attempts >= max {
		return 0, otp.ErrAttemptsExhausted
	}
	rec.Attempts++
	return rec.Attempts, nil
}

func (s *fakeOTPStore) Clear(_ context.Context, email string) error {
	delete(s.records, email)
	return nil
}

// fakeMailer records every email instead of sending it.
type fakeMailer struct {
	sent []mailer.Email
	err  error
}

func (m *fakeMailer) Send(email mailer.Email) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *fakeMailer) SendHTML(to []string, subject, htmlBody string) error {
	return m.Send(mailer.Email{To: to, Subject: subject, HTMLBody: htmlBody})
}

// fakeGoogleVerifier returns a canned token info or error.
type fakeGoogleVerifier struct {
	info *oauth2.Tokeninfo
	err  error
}

func (v *fakeGoogleVerifier) ValidateIDToken(_ context.Context, _ string) (*oauth2.Tokeninfo, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.info, nil
}

type authFixture struct {
	usecase       AuthUsecase
	accounts      *fakeAccountRepo
	registerStore *fakeOTPStore
	mailer        *fakeMailer
	google        *fakeGoogleVerifier
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	accounts := &fakeAccountRepo{}
	registerStore := newFakeOTPStore()
	m := &fakeMailer{}
	google := &fakeGoogleVerifier{}

	resetEngine := otp.NewEngine(&repository.AccountOTPStore{Accounts: accounts}, otp.Policy{
		ExpiryWindow:      5 * time.Minute,
		MaxSendAttempts:   3,
		MaxVerifyAttempts: 5,
		SendCooldown:      time.Hour,
	})
	registerEngine := otp.NewEngine(registerStore, otp.Policy{
		ExpiryWindow:      2 * time.Minute,
		MaxSendAttempts:   3,
		MaxVerifyAttempts: 5,
		SendCooldown:      time.Hour,
	})

	jwtAuth := auth.NewJWTAuthenticator("test-secret", "zola-api", time.Hour)

	return &authFixture{
		usecase: NewAuthUsecase(
			accounts,
			resetEngine,
			registerEngine,
			jwtAuth,
			m,
			google,
			5*time.Minute,
			2*time.Minute,
			3,
		),
		accounts:      accounts,
		registerStore: registerStore,
		mailer:        m,
		google:        google,
	}
}

func (f *authFixture) seedPasswordAccount(t *testing.T, email, password string) *model.Account {
	t.Helper()

	hash, err := security.HashPassword(password)
	require.NoError(t, err)

	account, err := f.accounts.CreateAccount(context.Background(), &model.Account{
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		Provider:     model.ProviderEmail,
	})
	require.NoError(t, err)
	return account
}

func TestLogin_Success(t *testing.T) {
	f := newAuthFixture(t)
	f.seedPasswordAccount(t, "user@example.com", "secret123")

	result, err := f.usecase.Login(context.Background(), LoginParams{
		Email:    "User@Example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "user@example.com", result.Account.Email)
}

func TestLogin_SameErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.seedPasswordAccount(t, "user@example.com", "secret123")

	_, errUnknown := f.usecase.Login(context.Background(), LoginParams{
		Email:    "nobody@example.com",
		Password: "secret123",
	})
	_, errWrongPassword := f.usecase.Login(context.Background(), LoginParams{
		Email:    "user@example.com",
		Password: "not-the-password",
	})

	assert.ErrorIs(t, errUnknown, ErrWrongCredentials)
	assert.ErrorIs(t, errWrongPassword, ErrWrongCredentials)
	assert.Equal(t, errUnknown.Error(), errWrongPassword.Error())
}

func TestLogin_GoogleAccountNeverComparesHash(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.accounts.CreateAccount(context.Background(), &model.Account{
		Email:    "g@example.com",
		Name:     "Google User",
		Provider: model.ProviderGoogle,
		GoogleID: "google-123",
	})
	require.NoError(t, err)

	_, err = f.usecase.Login(context.Background(), LoginParams{
		Email:    "g@example.com",
		Password: "anything",
	})
	assert.ErrorIs(t, err, ErrGoogleAccount)
}

func TestLoginWithGoogle_CreatesThenUpdatesAccount(t *testing.T) {
	f := newAuthFixture(t)
	f.google.info = &oauth2.Tokeninfo{UserId: "google-123", Audience: "client-id"}

	first, err := f.usecase.LoginWithGoogle(context.Background(), GoogleLoginParams{
		IDToken: "token",
		Email:   "g@example.com",
		Name:    "First Name",
		Avatar:  "https://img/one.png",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ProviderGoogle, first.Account.Provider)
	assert.Equal(t, "google-123", first.Account.GoogleID)
	assert.NotEmpty(t, first.Token)

	second, err := f.usecase.LoginWithGoogle(context.Background(), GoogleLoginParams{
		IDToken: "token",
		Email:   "g@example.com",
		Name:    "New Name",
		Avatar:  "https://img/two.png",
	})
	require.NoError(t, err)
	assert.Equal(t, first.Account.ID, second.Account.ID)
	assert.Equal(t, "New Name", second.Account.Name)
	assert.Len(t, f.accounts.accounts, 1)
}

func TestLoginWithGoogle_InvalidToken(t *testing.T) {
	f := newAuthFixture(t)
	f.google.err = errors.New("boom")

	_, err := f.usecase.LoginWithGoogle(context.Background(), GoogleLoginParams{
		IDToken: "bad",
		Email:   "g@example.com",
		Name:    "Name",
	})
	assert.Equal(t, apperror.KindUpstream, apperror.KindOf(err))
}

func TestRegisterFlow_EndToEnd(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.usecase.SendRegisterOTP(ctx, "new@example.com"))
	require.Len(t, f.mailer.sent, 1)

	code := f.registerStore.records["new@example.com"].Code
	require.NoError(t, f.usecase.VerifyRegisterOTP(ctx, "new@example.com", code))

	// The gate record is consumed on success.
	err := f.usecase.VerifyRegisterOTP(ctx, "new@example.com", code)
	assert.ErrorIs(t, err, ErrOTPNotFound)

	account, err := f.usecase.RegisterFinal(ctx, RegisterParams{
		Email:    "new@example.com",
		Username: "newuser",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ProviderEmail, account.Provider)

	result, err := f.usecase.Login(ctx, LoginParams{Email: "new@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestRegisterFinal_EmailTaken(t *testing.T) {
	f := newAuthFixture(t)
	f.seedPasswordAccount(t, "user@example.com", "secret123")

	_, err := f.usecase.RegisterFinal(context.Background(), RegisterParams{
		Email:    "user@example.com",
		Username: "dupe",
		Password: "secret123",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSendRegisterOTP_RateLimited(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.usecase.SendRegisterOTP(ctx, "new@example.com"))
	}

	err := f.usecase.SendRegisterOTP(ctx, "new@example.com")
	assert.ErrorIs(t, err, ErrOTPRateLimited)
	assert.Len(t, f.mailer.sent, 3)
}

func TestRequestPasswordReset_RejectsGoogleAccount(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.accounts.CreateAccount(context.Background(), &model.Account{
		Email:    "g@example.com",
		Provider: model.ProviderGoogle,
		GoogleID: "google-123",
	})
	require.NoError(t, err)

	_, err = f.usecase.RequestPasswordReset(context.Background(), "g@example.com")
	assert.ErrorIs(t, err, ErrGoogleAccount)
}

func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.usecase.RequestPasswordReset(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestPasswordResetFlow_EndToEnd(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.seedPasswordAccount(t, "user@example.com", "oldpassword")

	result, err := f.usecase.RequestPasswordReset(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SendAttempts)
	assert.Equal(t, 3, result.MaxSendAttempts)
	require.Len(t, f.mailer.sent, 1)

	account := f.accounts.findByEmail("user@example.com")
	code := account.OTP
	require.Len(t, code, 6)
	assert.Contains(t, f.mailer.sent[0].HTMLBody, code)

	require.NoError(t, f.usecase.VerifyResetOTP(ctx, "user@example.com", code))

	err = f.usecase.ResetPassword(ctx, ResetPasswordParams{
		Email:           "user@example.com",
		OTP:             code,
		NewPassword:     "newpassword",
		ConfirmPassword: "newpassword",
	})
	require.NoError(t, err)

	// OTP record is cleared once the reset completes.
	assert.Empty(t, account.OTP)
	assert.Zero(t, account.OTPSendAttempts)

	_, err = f.usecase.Login(ctx, LoginParams{Email: "user@example.com", Password: "newpassword"})
	require.NoError(t, err)

	_, err = f.usecase.Login(ctx, LoginParams{Email: "user@example.com", Password: "oldpassword"})
	assert.ErrorIs(t, err, ErrWrongCredentials)
}

func TestVerifyResetOTP_WrongCodeReportsRemaining(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.seedPasswordAccount(t, "user@example.com", "oldpassword")

	_, err := f.usecase.RequestPasswordReset(ctx, "user@example.com")
	require.NoError(t, err)

	account := f.accounts.findByEmail("user@example.com")
	wrong := "000000"
	if account.OTP == wrong {
		wrong = "000001"
	}

	err = f.usecase.VerifyResetOTP(ctx, "user@example.com", wrong)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "4")

	var invalid *otp.InvalidCodeError
	assert.ErrorAs(t, err, &invalid)
}

func TestResetPassword_ShortPasswordDoesNotMutate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.seedPasswordAccount(t, "user@example.com", "oldpassword")

	_, err := f.usecase.RequestPasswordReset(ctx, "user@example.com")
	require.NoError(t, err)

	account := f.accounts.findByEmail("user@example.com")
	oldHash := account.PasswordHash

	err = f.usecase.ResetPassword(ctx, ResetPasswordParams{
		Email:           "user@example.com",
		OTP:             account.OTP,
		NewPassword:     "short",
		ConfirmPassword: "short",
	})
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	assert.Equal(t, oldHash, account.PasswordHash)
	assert.NotEmpty(t, account.OTP)
}

func TestResetPassword_MismatchedConfirmation(t *testing.T) {
	f := newAuthFixture(t)

	err := f.usecase.ResetPassword(context.Background(), ResetPasswordParams{
		Email:           "user@example.com",
		OTP:             "123456",
		NewPassword:     "newpassword",
		ConfirmPassword: "different",
	})
	assert.ErrorIs(t, err, ErrPasswordMismatch)
}
