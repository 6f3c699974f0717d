// Package auth verifies session tokens. Tokens are bcrypt-hashed at
// rest; comparison happens off the game loop under a hard timeout so a
// slow hash cannot stall logins behind it.
package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/saltmere/server/internal/errs"
)

// verifyTimeout bounds one token check, storage round trip included.
const verifyTimeout = 5 * time.Second

// TokenStore is the persistence behind the verifier.
type TokenStore interface {
	// LoadHash returns the stored bcrypt hash, empty when the character
	// has no token yet.
	LoadHash(ctx context.Context, playerName string) (string, error)
	Store(ctx context.Context, playerName, rawToken string) error
	Touch(ctx context.Context, playerName string) error
}

// Verifier checks presented tokens against the store.
type Verifier struct {
	tokens TokenStore
	log    *zap.Logger
}

func NewVerifier(tokens TokenStore, log *zap.Logger) *Verifier {
	return &Verifier{tokens: tokens, log: log}
}

// Verify checks a character's token. A character with no stored token
// claims this one on first use. Returns ErrRejected on a bad token and
// ErrTransient when the store cannot answer in time.
func (v *Verifier) Verify(ctx context.Context, playerName, rawToken string) error {
	if playerName == "" || rawToken == "" {
		return errs.Invalidf("name and token are required")
	}

	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	hash, err := v.tokens.LoadHash(ctx, playerName)
	if err != nil {
		v.log.Warn("token lookup failed", zap.String("player", playerName), zap.Error(err))
		return errs.Transientf("authentication unavailable")
	}

	if hash == "" {
		if err := v.tokens.Store(ctx, playerName, rawToken); err != nil {
			v.log.Warn("token claim failed", zap.String("player", playerName), zap.Error(err))
			return errs.Transientf("authentication unavailable")
		}
		v.log.Info("token claimed", zap.String("player", playerName))
		return nil
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawToken)) != nil {
		return errs.Rejectedf("bad token")
	}
	if err := v.tokens.Touch(ctx, playerName); err != nil {
		v.log.Debug("token touch failed", zap.String("player", playerName), zap.Error(err))
	}
	return nil
}

// MemoryTokens is the in-process token store used when the database is
// disabled, and in tests.
type MemoryTokens struct {
	mu     sync.Mutex
	hashes map[string]string
}

func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{hashes: make(map[string]string)}
}

func (m *MemoryTokens) LoadHash(_ context.Context, playerName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashes[playerName], nil
}

func (m *MemoryTokens) Store(_ context.Context, playerName, rawToken string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawToken), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[playerName] = string(hash)
	return nil
}

func (m *MemoryTokens) Touch(context.Context, string) error { return nil }
