package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

var (
	ErrInvalidGoogleAudience = errors.New("invalid google audience")
	ErrExpiredIDToken        = errors.New("google id token is expired")
	ErrInvalidIDToken        = errors.New("google id token is invalid")
)

// GoogleOAuthProvider verifies Google ID tokens against a configured OAuth
// client id.
type GoogleOAuthProvider struct {
	clientID string
}

// NewGoogleOAuthProvider creates a provider bound to the given client id.
func NewGoogleOAuthProvider(clientID string) *GoogleOAuthProvider {
	return &GoogleOAuthProvider{clientID: clientID}
}

// ValidateIDToken verifies idToken with Google's tokeninfo endpoint and checks
// the audience. Expired, revoked and malformed tokens come back as
// ErrExpiredIDToken or ErrInvalidIDToken; an audience mismatch as
// ErrInvalidGoogleAudience.
func (p *GoogleOAuthProvider) ValidateIDToken(ctx context.Context, idToken string) (*oauth2.Tokeninfo, error) {
	oauth2Service, err := oauth2.NewService(ctx, option.WithHTTPClient(&http.Client{}))
	if err != nil {
		return nil, err
	}

	tokenInfoCall := oauth2Service.Tokeninfo()
	tokenInfoCall.IdToken(idToken)
	tokenInfo, err := tokenInfoCall.Context(ctx).Do()
	if err != nil {
		return nil, classifyTokenError(err)
	}

	if tokenInfo.Audience != p.clientID {
		return nil, ErrInvalidGoogleAudience
	}

	return tokenInfo, nil
}

// classifyTokenError maps the tokeninfo endpoint's rejections onto the
// provider's sentinel errors.
func classifyTokenError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	if apiErr.Code == http.StatusBadRequest {
		if strings.Contains(strings.ToLower(apiErr.Message), "expired") {
			return ErrExpiredIDToken
		}
		return ErrInvalidIDToken
	}

	return err
}
