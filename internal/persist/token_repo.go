package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// TokenRepo stores bcrypt-hashed session tokens, one per character.
type TokenRepo struct {
	db *DB
}

func NewTokenRepo(db *DB) *TokenRepo {
	return &TokenRepo{db: db}
}

// LoadHash returns the stored token hash for a character, empty when the
// character has no token yet.
func (r *TokenRepo) LoadHash(ctx context.Context, playerName string) (string, error) {
	var hash string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT token_hash FROM auth_tokens WHERE player_name = $1`, playerName,
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// Store hashes and upserts a character's token.
func (r *TokenRepo) Store(ctx context.Context, playerName, rawToken string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawToken), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO auth_tokens (player_name, token_hash) VALUES ($1, $2)
		 ON CONFLICT (player_name) DO UPDATE SET token_hash = EXCLUDED.token_hash`,
		playerName, string(hash),
	)
	return err
}

// Touch records a successful use of the token.
func (r *TokenRepo) Touch(ctx context.Context, playerName string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE auth_tokens SET last_used = NOW() WHERE player_name = $1`,
		playerName,
	)
	return err
}

// Validate compares a presented token against the stored hash.
func (r *TokenRepo) Validate(hash, rawToken string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawToken)) == nil
}
