// Package auth turns bearer credentials into caller identities. The rest of
// the server only ever sees the resulting uid.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/api/idtoken"

	"DailyBitesserver/internal/domain"
)

// Identity is a verified caller. UID is namespaced by provider so subjects
// from different issuers never collide.
type Identity struct {
	UID      string
	Provider string
	Email    string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type GoogleVerifier struct {
	ClientID string
	validate googleValidateFunc
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{ClientID: clientID}
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	validate := v.validate
	if validate == nil {
		validate = idtoken.Validate
	}
	claims, err := verifyGoogle(ctx, validate, token, v.ClientID)
	return identityFrom("google", claims, err)
}

type AppleVerifier struct {
	ServiceID string
	validate  appleValidateFunc
}

func (v *AppleVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	validate := v.validate
	if validate == nil {
		validate = validateApple
	}
	claims, err := verifyApple(ctx, validate, token, v.ServiceID)
	return identityFrom("apple", claims, err)
}

func identityFrom(provider string, claims *ExternalTokenClaims, err error) (Identity, error) {
	if err != nil {
		return Identity{}, err
	}
	if claims.Subject == "" {
		return Identity{}, errors.New("id token has no subject")
	}
	return Identity{UID: provider + ":" + claims.Subject, Provider: provider, Email: claims.Email}, nil
}

// DevVerifier accepts tokens of the form "dev:<uid>". Only wired outside prod.
type DevVerifier struct{}

func (DevVerifier) Verify(_ context.Context, token string) (Identity, error) {
	uid, ok := strings.CutPrefix(token, "dev:")
	if !ok || strings.TrimSpace(uid) == "" {
		return Identity{}, errors.New("not a dev token")
	}
	return Identity{UID: uid, Provider: "dev"}, nil
}

// Chain tries each verifier in order and returns the first identity.
type Chain struct {
	Verifiers []Verifier
	Logger    *slog.Logger
}

func (c *Chain) Verify(ctx context.Context, token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, domain.ErrUnauthorized
	}
	for _, v := range c.Verifiers {
		id, err := v.Verify(ctx, token)
		if err == nil {
			return id, nil
		}
		if c.Logger != nil {
			c.Logger.Debug("id token rejected", slog.Any("err", err))
		}
	}
	return Identity{}, domain.ErrUnauthorized
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
