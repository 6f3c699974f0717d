// Package state implements the runtime world-state store: lazily created
// per-room state, spawn and loot timers, and entity instance records with
// positions. Catalog data never lives here; this package owns everything
// that changes at runtime and survives a process restart.
package state

// Entity instance types.
const (
	TypeCreature = "creature"
	TypeNpc      = "npc"
	TypeItem     = "item"
)

// SpawnTimer tracks one spawn point inside a room.
type SpawnTimer struct {
	LastSpawnAt int64 `json:"last_spawn_at"`
	NextSpawnAt int64 `json:"next_spawn_at"`
	AliveCount  int   `json:"alive_count"`
}

// LootTimer tracks one loot source inside a room.
type LootTimer struct {
	LastRollAt int64 `json:"last_loot_roll_at"`
	NextRollAt int64 `json:"next_loot_roll_at"`
}

// RoomState is the runtime document for one room. Created lazily on first
// touch, reset when NextResetAt passes.
type RoomState struct {
	RoomID            string                 `json:"room_id"`
	Seed              int64                  `json:"seed"`
	CreatedAt         int64                  `json:"created_at"`
	LastActiveAt      int64                  `json:"last_active_at"`
	LastResetAt       int64                  `json:"last_reset_at"`
	NextResetAt       int64                  `json:"next_reset_at"`
	StateVersion      int                    `json:"state_version"`
	LastEncounterRoll int64                  `json:"last_encounter_roll_at"`
	SpawnTimers       map[string]*SpawnTimer `json:"spawn_timers"`
	LootTimers        map[string]*LootTimer  `json:"loot_timers"`
	DefeatedNpcs      map[string]int64       `json:"defeated_npcs,omitempty"` // npc id -> respawn at
}

// Instance is a runtime entity record: an encounter creature, a placed NPC,
// or an item lying in the world.
type Instance struct {
	ID           string  `json:"instance_id"`
	TemplateID   string  `json:"template_id"`
	Type         string  `json:"entity_type"`
	CreatedAt    int64   `json:"created_at"`
	Tier         string  `json:"tier,omitempty"`
	Role         string  `json:"role,omitempty"`
	HPCurrent    int     `json:"hp_current,omitempty"`
	HPMax        int     `json:"hp_max,omitempty"`
	SpeedCost    float64 `json:"speed_cost,omitempty"`
	Quantity     int     `json:"quantity,omitempty"`
	Durability   int     `json:"durability_current,omitempty"`
	ExpiresAt    int64   `json:"expires_at,omitempty"`
	SpawnGroupID string  `json:"spawn_group_id,omitempty"`
	EncounterID  string  `json:"encounter_id,omitempty"`
}

// Position places an instance in a room.
type Position struct {
	InstanceID  string `json:"instance_id"`
	RoomID      string `json:"room_id"`
	LeashRoomID string `json:"leash_room_id,omitempty"`
}

// Entity is an instance joined with its position, as returned by
// EntitiesInRoom.
type Entity struct {
	*Instance
	RoomID      string
	LeashRoomID string
}
