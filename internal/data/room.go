package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Exposure classifies how a room meets the sky. Weather overlays and some
// modifiers only apply to exposed rooms.
const (
	ExposureIndoor    = "indoor"
	ExposureSheltered = "sheltered"
	ExposureOutdoor   = "outdoor"
	ExposureCoastal   = "coastal"
)

// Room holds static data for one room loaded from YAML.
type Room struct {
	ID          string            `yaml:"room_id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Zone        string            `yaml:"zone"`     // encounter table key, empty = safe
	Region      string            `yaml:"region"`   // weather region
	Exposure    string            `yaml:"exposure"` // indoor, outdoor, coastal
	Exits       map[string]string `yaml:"exits"`    // direction -> room id
	Items       []string          `yaml:"items"`    // ground items at reset
	Npcs        []string          `yaml:"npcs"`     // statically placed NPC ids
	ShopID      string            `yaml:"shop_id"`  // non-empty marks a shop room
	Flags       []string          `yaml:"flags"`
}

type roomListFile struct {
	Rooms []Room `yaml:"rooms"`
}

// RoomTable holds all rooms indexed by ID.
type RoomTable struct {
	rooms map[string]*Room
}

// LoadRoomTable loads rooms from a YAML file.
func LoadRoomTable(path string) (*RoomTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rooms: %w", err)
	}
	var f roomListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse rooms: %w", err)
	}
	t := &RoomTable{rooms: make(map[string]*Room, len(f.Rooms))}
	for i := range f.Rooms {
		r := &f.Rooms[i]
		if r.Exposure == "" {
			r.Exposure = ExposureOutdoor
		}
		if r.Region == "" {
			r.Region = "town"
		}
		t.rooms[r.ID] = r
	}
	return t, nil
}

// Get returns a room by ID, or nil if not found.
func (t *RoomTable) Get(id string) *Room {
	return t.rooms[id]
}

// Count returns the number of loaded rooms.
func (t *RoomTable) Count() int {
	return len(t.rooms)
}

// All returns every room. Iteration order is not defined.
func (t *RoomTable) All() map[string]*Room {
	return t.rooms
}

// Put inserts or replaces a room (admin room editing).
func (t *RoomTable) Put(r *Room) {
	if t.rooms == nil {
		t.rooms = make(map[string]*Room)
	}
	t.rooms[r.ID] = r
}

// Delete removes a room by ID.
func (t *RoomTable) Delete(id string) {
	delete(t.rooms, id)
}
