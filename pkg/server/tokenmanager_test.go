package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager(time.Minute)

	tok, err := tm.GenerateToken("alice")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	payload, err := tm.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", payload.Username)

	// single use
	_, err = tm.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrNonexistentToken)
}

func TestTokenExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tm := NewTokenManager(time.Minute)
	tm.now = func() time.Time { return now }

	stale, err := tm.GenerateToken("alice")
	require.NoError(t, err)
	_, err = tm.GenerateToken("bob")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	fresh, err := tm.GenerateToken("carol")
	require.NoError(t, err)

	_, err = tm.ValidateToken(stale)
	assert.ErrorIs(t, err, ErrExpiredToken)

	assert.Equal(t, 1, tm.PruneTokens())

	payload, err := tm.ValidateToken(fresh)
	require.NoError(t, err)
	assert.Equal(t, "carol", payload.Username)
}
