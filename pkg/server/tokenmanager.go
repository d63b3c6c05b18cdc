package server

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

type TokenPayload struct {
	CreationTime time.Time
	Username     string
}

const (
	MAX_TOKEN_GEN_ATTEMPTS = 5
	TOKEN_LENGTH           = 16
)

var (
	ErrNonexistentToken = errors.New("Token does not exist")
	ErrExpiredToken     = errors.New("Token has expired")
	ErrTooManyAttempts  = errors.New("Token generation failed after too many attempts")
)

// TokenManager hands out single-use tokens that a client trades in when it
// opens its websocket connection.
type TokenManager struct {
	mu           sync.Mutex
	ttl          time.Duration
	now          func() time.Time
	activeTokens map[string]TokenPayload
}

func NewTokenManager(ttl time.Duration) *TokenManager {
	return &TokenManager{
		ttl:          ttl,
		now:          time.Now,
		activeTokens: make(map[string]TokenPayload),
	}
}

func (t *TokenManager) GenerateToken(username string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var attempts int
	var tok string

	for {
		if tok != "" {
			if _, ok := t.activeTokens[tok]; !ok {
				break
			}
		}

		if attempts > MAX_TOKEN_GEN_ATTEMPTS {
			return "", ErrTooManyAttempts
		}
		attempts++

		reader := io.LimitReader(rand.Reader, TOKEN_LENGTH)

		var sb strings.Builder
		b64Enc := base64.NewEncoder(base64.URLEncoding, &sb)
		if _, err := io.Copy(b64Enc, reader); err != nil {
			return "", err
		}
		if err := b64Enc.Close(); err != nil {
			return "", err
		}

		tok = sb.String()
	}

	t.activeTokens[tok] = TokenPayload{
		CreationTime: t.now(),
		Username:     username,
	}

	return tok, nil
}

// ValidateToken consumes s. A token can only be validated once.
func (t *TokenManager) ValidateToken(s string) (TokenPayload, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	payload, ok := t.activeTokens[s]
	if !ok {
		return TokenPayload{}, ErrNonexistentToken
	}

	delete(t.activeTokens, s)

	if t.now().Sub(payload.CreationTime) > t.ttl {
		return TokenPayload{}, ErrExpiredToken
	}

	return payload, nil
}

// PruneTokens drops expired tokens and reports how many were removed.
func (t *TokenManager) PruneTokens() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var toPrune []string
	for tok, p := range t.activeTokens {
		if t.now().Sub(p.CreationTime) > t.ttl {
			toPrune = append(toPrune, tok)
		}
	}

	for _, tp := range toPrune {
		delete(t.activeTokens, tp)
	}

	return len(toPrune)
}
