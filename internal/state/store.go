package state

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultResetSeconds is the inactivity window after which a room's seed
// and timers reset.
const DefaultResetSeconds = 3600

// Store is the runtime state service. Safe for concurrent callers; per-room
// atomicity is delegated to the backend.
type Store struct {
	backend      Backend
	log          *zap.Logger
	resetSeconds int64
	now          func() int64
}

// NewStore builds a store over the given backend.
func NewStore(backend Backend, resetWindow time.Duration, log *zap.Logger) *Store {
	rs := int64(resetWindow / time.Second)
	if rs <= 0 {
		rs = DefaultResetSeconds
	}
	return &Store{
		backend:      backend,
		log:          log,
		resetSeconds: rs,
		now:          func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc replaces the time source, for tests.
func (s *Store) SetNowFunc(now func() int64) { s.now = now }

func (s *Store) seedRoomState(roomID string) *RoomState {
	now := s.now()
	return &RoomState{
		RoomID:       roomID,
		Seed:         now % (1 << 31),
		CreatedAt:    now,
		LastActiveAt: now,
		LastResetAt:  now,
		NextResetAt:  now + s.resetSeconds,
		StateVersion: 1,
		SpawnTimers:  map[string]*SpawnTimer{},
		LootTimers:   map[string]*LootTimer{},
	}
}

// GetOrCreateRoomState loads the room's state, creating it lazily.
func (s *Store) GetOrCreateRoomState(ctx context.Context, roomID string) (*RoomState, error) {
	st, err := s.backend.LoadRoomState(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load room state %s: %w", roomID, err)
	}
	if st != nil {
		if st.SpawnTimers == nil {
			st.SpawnTimers = map[string]*SpawnTimer{}
		}
		if st.LootTimers == nil {
			st.LootTimers = map[string]*LootTimer{}
		}
		return st, nil
	}
	st = s.seedRoomState(roomID)
	if err := s.backend.SaveRoomState(ctx, st); err != nil {
		return nil, fmt.Errorf("save room state %s: %w", roomID, err)
	}
	return st, nil
}

// TouchRoomActive stamps last_active_at when a player interacts in the room.
func (s *Store) TouchRoomActive(ctx context.Context, roomID string) error {
	_, err := s.backend.MutateRoomState(ctx, roomID, func() *RoomState { return s.seedRoomState(roomID) },
		func(st *RoomState) (bool, error) {
			st.LastActiveAt = s.now()
			return true, nil
		})
	return err
}

// MutateRoomState exposes the backend's atomic read-modify-write to other
// services (the encounter cooldown stamp uses it).
func (s *Store) MutateRoomState(ctx context.Context, roomID string, fn func(*RoomState) (bool, error)) (bool, error) {
	return s.backend.MutateRoomState(ctx, roomID, func() *RoomState { return s.seedRoomState(roomID) }, fn)
}

// SpawnTimer returns a copy of the timer for one spawn point.
func (s *Store) SpawnTimer(ctx context.Context, roomID, spawnID string) (SpawnTimer, error) {
	st, err := s.GetOrCreateRoomState(ctx, roomID)
	if err != nil {
		return SpawnTimer{}, err
	}
	if t, ok := st.SpawnTimers[spawnID]; ok {
		return *t, nil
	}
	return SpawnTimer{}, nil
}

// DecrementSpawnAlive drops a spawn point's alive count by one, on death of
// a spawned creature. Never goes below zero.
func (s *Store) DecrementSpawnAlive(ctx context.Context, roomID, spawnID string) error {
	_, err := s.MutateRoomState(ctx, roomID, func(st *RoomState) (bool, error) {
		t, ok := st.SpawnTimers[spawnID]
		if !ok || t.AliveCount <= 0 {
			return false, nil
		}
		t.AliveCount--
		return true, nil
	})
	return err
}

// TryConsumeSpawnEligibility atomically checks and consumes one spawn slot.
// Returns true when the caller may spawn; at most one of any number of
// concurrent callers succeeds per slot.
func (s *Store) TryConsumeSpawnEligibility(ctx context.Context, roomID, spawnID string, maxAlive int, cooldown time.Duration) (bool, error) {
	now := s.now()
	return s.MutateRoomState(ctx, roomID, func(st *RoomState) (bool, error) {
		t, ok := st.SpawnTimers[spawnID]
		if !ok {
			t = &SpawnTimer{}
			st.SpawnTimers[spawnID] = t
		}
		if t.AliveCount >= maxAlive || now < t.NextSpawnAt {
			return false, nil
		}
		t.AliveCount++
		t.LastSpawnAt = now
		t.NextSpawnAt = now + int64(cooldown/time.Second)
		return true, nil
	})
}

// MarkNpcDefeated records a catalog NPC as slain in a room. The NPC stays
// out of the room until the respawn window passes or the room resets.
func (s *Store) MarkNpcDefeated(ctx context.Context, roomID, npcID string, respawn time.Duration) error {
	respawnAt := s.now() + int64(respawn/time.Second)
	_, err := s.MutateRoomState(ctx, roomID, func(st *RoomState) (bool, error) {
		if st.DefeatedNpcs == nil {
			st.DefeatedNpcs = map[string]int64{}
		}
		st.DefeatedNpcs[npcID] = respawnAt
		return true, nil
	})
	return err
}

// DefeatedNpcs returns the catalog NPCs still down in a room. Entries whose
// respawn time has passed are cleared as they are seen.
func (s *Store) DefeatedNpcs(ctx context.Context, roomID string) (map[string]bool, error) {
	now := s.now()
	down := map[string]bool{}
	_, err := s.MutateRoomState(ctx, roomID, func(st *RoomState) (bool, error) {
		changed := false
		for id, at := range st.DefeatedNpcs {
			if at <= now {
				delete(st.DefeatedNpcs, id)
				changed = true
				continue
			}
			down[id] = true
		}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	return down, nil
}

// CreateInstance stores a new entity instance and returns its id.
func (s *Store) CreateInstance(ctx context.Context, inst Instance) (string, error) {
	inst.ID = uuid.NewString()
	inst.CreatedAt = s.now()
	if err := s.backend.SaveInstance(ctx, &inst); err != nil {
		return "", fmt.Errorf("save instance %s: %w", inst.TemplateID, err)
	}
	return inst.ID, nil
}

// UpdateInstance overwrites an existing instance record.
func (s *Store) UpdateInstance(ctx context.Context, inst *Instance) error {
	return s.backend.SaveInstance(ctx, inst)
}

// Instance loads one instance, nil when missing.
func (s *Store) Instance(ctx context.Context, instanceID string) (*Instance, error) {
	return s.backend.LoadInstance(ctx, instanceID)
}

// PlaceEntity sets an instance's position.
func (s *Store) PlaceEntity(ctx context.Context, instanceID, roomID string) error {
	return s.backend.SavePosition(ctx, &Position{InstanceID: instanceID, RoomID: roomID})
}

// Position loads one instance's position, nil when missing.
func (s *Store) Position(ctx context.Context, instanceID string) (*Position, error) {
	return s.backend.LoadPosition(ctx, instanceID)
}

// RemoveEntity deletes an instance's position and, optionally, the
// instance record itself (death).
func (s *Store) RemoveEntity(ctx context.Context, instanceID string, deleteInstance bool) error {
	if err := s.backend.DeletePosition(ctx, instanceID); err != nil {
		return err
	}
	if deleteInstance {
		return s.backend.DeleteInstance(ctx, instanceID)
	}
	return nil
}

// EntitiesInRoom joins positions with instances for one room. Instances
// whose expires_at has passed are removed from the world as they are
// encountered and excluded from the result. Results sort by instance id
// so iteration order is stable.
func (s *Store) EntitiesInRoom(ctx context.Context, roomID string) ([]*Entity, error) {
	positions, err := s.backend.PositionsInRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("positions in %s: %w", roomID, err)
	}
	now := s.now()
	var out []*Entity
	for _, pos := range positions {
		inst, err := s.backend.LoadInstance(ctx, pos.InstanceID)
		if err != nil {
			return nil, err
		}
		if inst == nil {
			// Orphan position; drop it.
			_ = s.backend.DeletePosition(ctx, pos.InstanceID)
			continue
		}
		if inst.ExpiresAt != 0 && inst.ExpiresAt <= now {
			if err := s.RemoveEntity(ctx, pos.InstanceID, true); err != nil {
				s.log.Warn("expire instance", zap.String("instance", pos.InstanceID), zap.Error(err))
			}
			continue
		}
		out = append(out, &Entity{Instance: inst, RoomID: pos.RoomID, LeashRoomID: pos.LeashRoomID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MaybeResetRoom resets the room's seed and timers when its reset window
// has passed, bumping state_version. Returns the room state either way.
func (s *Store) MaybeResetRoom(ctx context.Context, roomID string) (*RoomState, error) {
	var after *RoomState
	_, err := s.MutateRoomState(ctx, roomID, func(st *RoomState) (bool, error) {
		now := s.now()
		commit := false
		if st.NextResetAt <= now {
			st.LastResetAt = now
			st.NextResetAt = now + s.resetSeconds
			st.Seed = now % (1 << 31)
			st.StateVersion++
			st.SpawnTimers = map[string]*SpawnTimer{}
			st.LootTimers = map[string]*LootTimer{}
			st.DefeatedNpcs = nil
			commit = true
		}
		cp := *st
		after = &cp
		return commit, nil
	})
	if err != nil {
		return nil, err
	}
	return after, nil
}
