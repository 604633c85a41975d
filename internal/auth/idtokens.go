package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendrickPhan/go-verify-apple-id-token/validator"
	"google.golang.org/api/idtoken"
)

const appleIssuer = "https://appleid.apple.com"

var errMissingToken = errors.New("missing id token")

// ExternalTokenClaims are the provider claims the server keeps from an ID token.
type ExternalTokenClaims struct {
	Issuer  string
	Subject string
	Email   string
}

type googleValidateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

type appleValidateFunc func(audience, token string) (*ExternalTokenClaims, error)

func verifyGoogle(ctx context.Context, validate googleValidateFunc, token, audience string) (*ExternalTokenClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errMissingToken
	}
	if strings.TrimSpace(audience) == "" {
		return nil, errors.New("missing google client id")
	}

	payload, err := validate(ctx, token, audience)
	if err != nil {
		return nil, fmt.Errorf("google id token: %w", err)
	}
	switch payload.Issuer {
	case "accounts.google.com", "https://accounts.google.com":
	default:
		return nil, fmt.Errorf("unexpected issuer: %s", payload.Issuer)
	}

	claims := &ExternalTokenClaims{Issuer: payload.Issuer, Subject: payload.Subject}
	email, _ := payload.Claims["email"].(string)
	if verified, ok := payload.Claims["email_verified"].(bool); !ok || verified {
		claims.Email = normalizeEmail(email)
	}
	return claims, nil
}

func validateApple(audience, token string) (*ExternalTokenClaims, error) {
	tok, err := validator.NewClient().VerifyIdToken(audience, token)
	if err != nil {
		return nil, err
	}
	return &ExternalTokenClaims{Issuer: tok.Iss, Subject: tok.Sub, Email: tok.Email}, nil
}

func verifyApple(ctx context.Context, validate appleValidateFunc, token, audience string) (*ExternalTokenClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errMissingToken
	}
	if strings.TrimSpace(audience) == "" {
		return nil, errors.New("missing apple service id")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claims, err := validate(audience, token)
	if err != nil {
		return nil, fmt.Errorf("apple id token: %w", err)
	}
	if claims.Issuer != appleIssuer {
		return nil, fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	claims.Email = normalizeEmail(claims.Email)
	return claims, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
