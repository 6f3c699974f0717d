package state

import "context"

// Backend is the storage layer under the Store. Implementations must make
// MutateRoomState atomic per room: two concurrent mutations of the same
// room serialize, and the mutation function sees the latest state. The
// memory backend uses a per-room mutex; the Postgres backend runs a
// SELECT ... FOR UPDATE transaction.
type Backend interface {
	// LoadRoomState returns nil, nil when the room has no state yet.
	LoadRoomState(ctx context.Context, roomID string) (*RoomState, error)
	SaveRoomState(ctx context.Context, st *RoomState) error
	// MutateRoomState atomically applies fn to the room's state, creating
	// it via seed() when missing. fn returns true to commit the change.
	MutateRoomState(ctx context.Context, roomID string, seed func() *RoomState, fn func(*RoomState) (bool, error)) (bool, error)

	// LoadInstance returns nil, nil when the instance does not exist.
	LoadInstance(ctx context.Context, instanceID string) (*Instance, error)
	SaveInstance(ctx context.Context, inst *Instance) error
	DeleteInstance(ctx context.Context, instanceID string) error

	// LoadPosition returns nil, nil when the instance has no position.
	LoadPosition(ctx context.Context, instanceID string) (*Position, error)
	SavePosition(ctx context.Context, pos *Position) error
	DeletePosition(ctx context.Context, instanceID string) error
	PositionsInRoom(ctx context.Context, roomID string) ([]*Position, error)
}
