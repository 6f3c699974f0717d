package event

// Events crossing subsystem boundaries. Payloads are plain values; the
// subscriber resolves live objects itself on the tick it handles the event.

// EntityDefeated fires when a combatant's health reaches zero.
type EntityDefeated struct {
	RoomID     string
	InstanceID string // runtime instance, empty for scheduled/static NPCs
	TemplateID string // NPC template, empty for players
	PlayerName string // set when the defeated side is a player
	KillerName string // player credited with the kill, if any
}

// WeatherChanged fires when a region's weather rolls to a new type.
type WeatherChanged struct {
	Region    string
	OldType   string
	NewType   string
	Intensity int
}

// EncounterSpawned fires after an encounter group is placed in a room.
type EncounterSpawned struct {
	RoomID      string
	EncounterID string
	Instances   []string
}

// PlayerEntered fires when a player moves into a room or logs in.
type PlayerEntered struct {
	RoomID     string
	PlayerName string
}
