package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/saltmere/server/internal/world"
)

// flushBatchSize caps how many player upserts go into one pgx batch.
const flushBatchSize = 500

// PlayerRepo stores player characters as JSONB documents keyed by name.
type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// Load returns the stored player, or nil when no such character exists.
func (r *PlayerRepo) Load(ctx context.Context, name string) (*world.Player, error) {
	var doc []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT doc FROM players WHERE name = $1`, name,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", name, err)
	}

	p := &world.Player{}
	if err := json.Unmarshal(doc, p); err != nil {
		return nil, fmt.Errorf("decode player %s: %w", name, err)
	}
	return p, nil
}

// Save upserts one player document.
func (r *PlayerRepo) Save(ctx context.Context, p *world.Player) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode player %s: %w", p.Name, err)
	}
	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO players (name, doc, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		p.Name, doc,
	)
	if err != nil {
		return fmt.Errorf("save player %s: %w", p.Name, err)
	}
	return nil
}

// SaveBatch flushes many dirty players in pgx batches. Each batch is one
// round trip; a failed batch aborts the flush so the callers' dirty flags
// stay set for the next attempt.
func (r *PlayerRepo) SaveBatch(ctx context.Context, players []*world.Player) error {
	for start := 0; start < len(players); start += flushBatchSize {
		end := start + flushBatchSize
		if end > len(players) {
			end = len(players)
		}

		batch := &pgx.Batch{}
		for _, p := range players[start:end] {
			doc, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("encode player %s: %w", p.Name, err)
			}
			batch.Queue(
				`INSERT INTO players (name, doc, updated_at) VALUES ($1, $2, NOW())
				 ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
				p.Name, doc,
			)
		}

		br := r.db.Pool.SendBatch(ctx, batch)
		var batchErr error
		for range players[start:end] {
			if _, err := br.Exec(); err != nil && batchErr == nil {
				batchErr = err
			}
		}
		if err := br.Close(); err != nil && batchErr == nil {
			batchErr = err
		}
		if batchErr != nil {
			return fmt.Errorf("flush players: %w", batchErr)
		}
	}
	return nil
}

// Exists reports whether a character name is taken.
func (r *PlayerRepo) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT 1 FROM players WHERE name = $1`, name,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
