// Package auth supplies bearer credentials to outbound calls. Token storage
// belongs to the caller; this package only carries the token to where it is
// needed.
package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrAuthenticationRequired means no credential was available before an
// outbound call. It is a caller setup error and is never retried.
var ErrAuthenticationRequired = errors.New("authentication required")

// CredentialProvider returns the bearer token for outbound calls. An empty
// token with a nil error means "no credential".
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed service token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

type tokenKey struct{}

// WithToken returns a copy of ctx carrying token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// ContextProvider reads the token placed by WithToken.
type ContextProvider struct{}

func (ContextProvider) Token(ctx context.Context) (string, error) {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token, nil
}

// Chain returns the first non-empty token from its providers.
type Chain []CredentialProvider

func (c Chain) Token(ctx context.Context) (string, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		token, err := p.Token(ctx)
		if err != nil {
			return "", err
		}
		if token != "" {
			return token, nil
		}
	}
	return "", nil
}

// Require resolves a token from p and fails with ErrAuthenticationRequired
// when there is none.
func Require(ctx context.Context, p CredentialProvider) (string, error) {
	if p == nil {
		return "", ErrAuthenticationRequired
	}
	token, err := p.Token(ctx)
	if err != nil {
		return "", errors.Join(ErrAuthenticationRequired, err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrAuthenticationRequired
	}
	return token, nil
}

// BearerFromHeader extracts the token from an Authorization header value.
func BearerFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
