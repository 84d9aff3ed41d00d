package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingProvider struct{}

func (failingProvider) Token(context.Context) (string, error) {
	return "", errors.New("vault sealed")
}

func TestRequire(t *testing.T) {
	ctx := context.Background()

	_, err := Require(ctx, nil)
	assert.ErrorIs(t, err, ErrAuthenticationRequired)

	_, err = Require(ctx, StaticToken("  "))
	assert.ErrorIs(t, err, ErrAuthenticationRequired)

	_, err = Require(ctx, failingProvider{})
	assert.ErrorIs(t, err, ErrAuthenticationRequired)

	token, err := Require(ctx, StaticToken("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestChain(t *testing.T) {
	chain := Chain{ContextProvider{}, StaticToken("service")}

	token, err := chain.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "service", token)

	token, err = chain.Token(WithToken(context.Background(), "user"))
	require.NoError(t, err)
	assert.Equal(t, "user", token)

	token, err = Chain{ContextProvider{}, nil}.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestBearerFromHeader(t *testing.T) {
	assert.Equal(t, "tok", BearerFromHeader("Bearer tok"))
	assert.Equal(t, "tok", BearerFromHeader("bearer  tok "))
	assert.Empty(t, BearerFromHeader("Basic abc"))
	assert.Empty(t, BearerFromHeader("Bearer "))
	assert.Empty(t, BearerFromHeader(""))
}
