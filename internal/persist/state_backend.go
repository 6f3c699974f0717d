package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/saltmere/server/internal/state"
)

// StateBackend implements state.Backend on Postgres. Room state, entity
// instances, and positions live as JSONB documents; MutateRoomState takes
// a row lock so concurrent mutations of one room serialize.
type StateBackend struct {
	db *DB
}

var _ state.Backend = (*StateBackend)(nil)

func NewStateBackend(db *DB) *StateBackend {
	return &StateBackend{db: db}
}

func (b *StateBackend) LoadRoomState(ctx context.Context, roomID string) (*state.RoomState, error) {
	var doc []byte
	err := b.db.Pool.QueryRow(ctx,
		`SELECT doc FROM room_state WHERE room_id = $1`, roomID,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load room state %s: %w", roomID, err)
	}
	return decodeRoomState(roomID, doc)
}

func (b *StateBackend) SaveRoomState(ctx context.Context, st *state.RoomState) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode room state %s: %w", st.RoomID, err)
	}
	_, err = b.db.Pool.Exec(ctx,
		`INSERT INTO room_state (room_id, doc, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (room_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		st.RoomID, doc,
	)
	if err != nil {
		return fmt.Errorf("save room state %s: %w", st.RoomID, err)
	}
	return nil
}

// MutateRoomState locks the room row for the duration of fn. A missing
// row is inserted from seed() inside the same transaction, so two racing
// first-touch mutations still serialize on the insert.
func (b *StateBackend) MutateRoomState(ctx context.Context, roomID string, seed func() *state.RoomState, fn func(*state.RoomState) (bool, error)) (bool, error) {
	tx, err := b.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("mutate room %s: begin: %w", roomID, err)
	}
	defer tx.Rollback(ctx)

	var doc []byte
	err = tx.QueryRow(ctx,
		`SELECT doc FROM room_state WHERE room_id = $1 FOR UPDATE`, roomID,
	).Scan(&doc)

	var st *state.RoomState
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		st = seed()
		seedDoc, mErr := json.Marshal(st)
		if mErr != nil {
			return false, fmt.Errorf("encode room state %s: %w", roomID, mErr)
		}
		// ON CONFLICT catches the race where another transaction inserted
		// first; re-read under the lock.
		if _, err := tx.Exec(ctx,
			`INSERT INTO room_state (room_id, doc) VALUES ($1, $2)
			 ON CONFLICT (room_id) DO NOTHING`, roomID, seedDoc,
		); err != nil {
			return false, fmt.Errorf("seed room state %s: %w", roomID, err)
		}
		if err := tx.QueryRow(ctx,
			`SELECT doc FROM room_state WHERE room_id = $1 FOR UPDATE`, roomID,
		).Scan(&doc); err != nil {
			return false, fmt.Errorf("reread room state %s: %w", roomID, err)
		}
		if st, err = decodeRoomState(roomID, doc); err != nil {
			return false, err
		}
	case err != nil:
		return false, fmt.Errorf("lock room state %s: %w", roomID, err)
	default:
		if st, err = decodeRoomState(roomID, doc); err != nil {
			return false, err
		}
	}

	commit, err := fn(st)
	if err != nil {
		return false, err
	}
	if !commit {
		return false, tx.Commit(ctx)
	}

	out, err := json.Marshal(st)
	if err != nil {
		return false, fmt.Errorf("encode room state %s: %w", roomID, err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE room_state SET doc = $2, updated_at = NOW() WHERE room_id = $1`,
		roomID, out,
	); err != nil {
		return false, fmt.Errorf("write room state %s: %w", roomID, err)
	}
	return true, tx.Commit(ctx)
}

func (b *StateBackend) LoadInstance(ctx context.Context, instanceID string) (*state.Instance, error) {
	var doc []byte
	err := b.db.Pool.QueryRow(ctx,
		`SELECT doc FROM entity_instance WHERE id = $1`, instanceID,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load instance %s: %w", instanceID, err)
	}
	inst := &state.Instance{}
	if err := json.Unmarshal(doc, inst); err != nil {
		return nil, fmt.Errorf("decode instance %s: %w", instanceID, err)
	}
	return inst, nil
}

func (b *StateBackend) SaveInstance(ctx context.Context, inst *state.Instance) error {
	doc, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("encode instance %s: %w", inst.ID, err)
	}
	_, err = b.db.Pool.Exec(ctx,
		`INSERT INTO entity_instance (id, doc, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		inst.ID, doc,
	)
	if err != nil {
		return fmt.Errorf("save instance %s: %w", inst.ID, err)
	}
	return nil
}

func (b *StateBackend) DeleteInstance(ctx context.Context, instanceID string) error {
	_, err := b.db.Pool.Exec(ctx,
		`DELETE FROM entity_instance WHERE id = $1`, instanceID,
	)
	return err
}

func (b *StateBackend) LoadPosition(ctx context.Context, instanceID string) (*state.Position, error) {
	pos := &state.Position{}
	err := b.db.Pool.QueryRow(ctx,
		`SELECT instance_id, room_id, leash_room_id FROM entity_position WHERE instance_id = $1`,
		instanceID,
	).Scan(&pos.InstanceID, &pos.RoomID, &pos.LeashRoomID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load position %s: %w", instanceID, err)
	}
	return pos, nil
}

func (b *StateBackend) SavePosition(ctx context.Context, pos *state.Position) error {
	_, err := b.db.Pool.Exec(ctx,
		`INSERT INTO entity_position (instance_id, room_id, leash_room_id) VALUES ($1, $2, $3)
		 ON CONFLICT (instance_id) DO UPDATE SET room_id = EXCLUDED.room_id, leash_room_id = EXCLUDED.leash_room_id`,
		pos.InstanceID, pos.RoomID, pos.LeashRoomID,
	)
	return err
}

func (b *StateBackend) DeletePosition(ctx context.Context, instanceID string) error {
	_, err := b.db.Pool.Exec(ctx,
		`DELETE FROM entity_position WHERE instance_id = $1`, instanceID,
	)
	return err
}

func (b *StateBackend) PositionsInRoom(ctx context.Context, roomID string) ([]*state.Position, error) {
	rows, err := b.db.Pool.Query(ctx,
		`SELECT instance_id, room_id, leash_room_id FROM entity_position
		 WHERE room_id = $1 ORDER BY instance_id`, roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*state.Position
	for rows.Next() {
		pos := &state.Position{}
		if err := rows.Scan(&pos.InstanceID, &pos.RoomID, &pos.LeashRoomID); err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, rows.Err()
}

func decodeRoomState(roomID string, doc []byte) (*state.RoomState, error) {
	st := &state.RoomState{}
	if err := json.Unmarshal(doc, st); err != nil {
		return nil, fmt.Errorf("decode room state %s: %w", roomID, err)
	}
	return st, nil
}
