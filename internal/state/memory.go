package state

import (
	"context"
	"sync"
)

// MemoryBackend keeps all runtime state in process memory. It is the
// default for single-process deployments and for tests. Room mutations
// serialize on a per-room mutex; documents are copied on the way in and
// out so callers never share memory with the store.
type MemoryBackend struct {
	mu        sync.RWMutex
	rooms     map[string]*RoomState
	roomLocks map[string]*sync.Mutex
	instances map[string]*Instance
	positions map[string]*Position
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		rooms:     make(map[string]*RoomState),
		roomLocks: make(map[string]*sync.Mutex),
		instances: make(map[string]*Instance),
		positions: make(map[string]*Position),
	}
}

func (b *MemoryBackend) roomLock(roomID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.roomLocks[roomID]
	if !ok {
		l = &sync.Mutex{}
		b.roomLocks[roomID] = l
	}
	return l
}

func (b *MemoryBackend) LoadRoomState(_ context.Context, roomID string) (*RoomState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.rooms[roomID]
	if !ok {
		return nil, nil
	}
	return copyRoomState(st), nil
}

func (b *MemoryBackend) SaveRoomState(_ context.Context, st *RoomState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms[st.RoomID] = copyRoomState(st)
	return nil
}

func (b *MemoryBackend) MutateRoomState(ctx context.Context, roomID string, seed func() *RoomState, fn func(*RoomState) (bool, error)) (bool, error) {
	l := b.roomLock(roomID)
	l.Lock()
	defer l.Unlock()

	st, err := b.LoadRoomState(ctx, roomID)
	if err != nil {
		return false, err
	}
	if st == nil {
		st = seed()
	}
	commit, err := fn(st)
	if err != nil || !commit {
		return false, err
	}
	return true, b.SaveRoomState(ctx, st)
}

func (b *MemoryBackend) LoadInstance(_ context.Context, instanceID string) (*Instance, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	inst, ok := b.instances[instanceID]
	if !ok {
		return nil, nil
	}
	cp := *inst
	return &cp, nil
}

func (b *MemoryBackend) SaveInstance(_ context.Context, inst *Instance) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *inst
	b.instances[inst.ID] = &cp
	return nil
}

func (b *MemoryBackend) DeleteInstance(_ context.Context, instanceID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.instances, instanceID)
	return nil
}

func (b *MemoryBackend) LoadPosition(_ context.Context, instanceID string) (*Position, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pos, ok := b.positions[instanceID]
	if !ok {
		return nil, nil
	}
	cp := *pos
	return &cp, nil
}

func (b *MemoryBackend) SavePosition(_ context.Context, pos *Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *pos
	b.positions[pos.InstanceID] = &cp
	return nil
}

func (b *MemoryBackend) DeletePosition(_ context.Context, instanceID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.positions, instanceID)
	return nil
}

func (b *MemoryBackend) PositionsInRoom(_ context.Context, roomID string) ([]*Position, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*Position
	for _, pos := range b.positions {
		if pos.RoomID == roomID {
			cp := *pos
			out = append(out, &cp)
		}
	}
	return out, nil
}

func copyRoomState(st *RoomState) *RoomState {
	cp := *st
	cp.SpawnTimers = make(map[string]*SpawnTimer, len(st.SpawnTimers))
	for k, v := range st.SpawnTimers {
		t := *v
		cp.SpawnTimers[k] = &t
	}
	cp.LootTimers = make(map[string]*LootTimer, len(st.LootTimers))
	for k, v := range st.LootTimers {
		t := *v
		cp.LootTimers[k] = &t
	}
	return &cp
}
