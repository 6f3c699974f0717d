// Package data loads the static world catalogs from YAML. Catalog records
// are immutable after load; all mutable runtime state lives in the state
// and world packages.
package data

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Catalog aggregates every static table the server needs.
type Catalog struct {
	Rooms   *RoomTable
	Npcs    *NpcTable
	Items   *ItemTable
	Shops   *ShopTable
	Zones   *ZoneTable
	Weather *WeatherTable
}

// Load reads all catalog files from dir. Missing files yield empty tables
// (weather falls back to the built-in defaults); malformed files are errors.
func Load(dir string, log *zap.Logger) (*Catalog, error) {
	c := &Catalog{
		Rooms:   &RoomTable{rooms: map[string]*Room{}},
		Npcs:    &NpcTable{templates: map[string]*NpcTemplate{}},
		Items:   &ItemTable{templates: map[string]*ItemTemplate{}},
		Shops:   &ShopTable{shops: map[string]*Shop{}},
		Zones:   &ZoneTable{zones: map[string][]EncounterRow{}, compositions: map[string][]CompositionEntry{}},
		Weather: DefaultWeatherTable(),
	}

	load := func(name string, fn func(path string) error) error {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			log.Warn("catalog file missing, using empty table", zap.String("file", name))
			return nil
		}
		if err := fn(path); err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
		return nil
	}

	steps := []struct {
		name string
		fn   func(path string) error
	}{
		{"rooms.yaml", func(p string) (err error) { c.Rooms, err = LoadRoomTable(p); return }},
		{"npcs.yaml", func(p string) (err error) { c.Npcs, err = LoadNpcTable(p); return }},
		{"items.yaml", func(p string) (err error) { c.Items, err = LoadItemTable(p); return }},
		{"shops.yaml", func(p string) (err error) { c.Shops, err = LoadShopTable(p); return }},
		{"zones.yaml", func(p string) (err error) { c.Zones, err = LoadZoneTable(p); return }},
		{"weather.yaml", func(p string) (err error) { c.Weather, err = LoadWeatherTable(p); return }},
	}
	for _, s := range steps {
		if err := load(s.name, s.fn); err != nil {
			return nil, err
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	log.Info("catalogs loaded",
		zap.Int("rooms", c.Rooms.Count()),
		zap.Int("npcs", c.Npcs.Count()),
		zap.Int("items", c.Items.Count()),
		zap.Int("shops", c.Shops.Count()),
		zap.Int("zones", c.Zones.Count()))
	return c, nil
}

// validate checks cross-table references after every table is in.
func (c *Catalog) validate() error {
	for id, room := range c.Rooms.All() {
		for dir, dest := range room.Exits {
			if c.Rooms.Get(dest) == nil {
				return fmt.Errorf("room %s: exit %s points at unknown room %s", id, dir, dest)
			}
		}
		if room.ShopID != "" && c.Shops.Get(room.ShopID) == nil {
			return fmt.Errorf("room %s: unknown shop %s", id, room.ShopID)
		}
		for _, npcID := range room.Npcs {
			if c.Npcs.Get(npcID) == nil {
				return fmt.Errorf("room %s: unknown npc %s", id, npcID)
			}
		}
	}
	for id, npc := range c.Npcs.All() {
		for _, l := range npc.LootTable {
			if c.Items.Get(l.Item) == nil {
				return fmt.Errorf("npc %s: unknown loot item %s", id, l.Item)
			}
		}
		for _, b := range npc.Schedule {
			if c.Rooms.Get(b.RoomID) == nil {
				return fmt.Errorf("npc %s: schedule block in unknown room %s", id, b.RoomID)
			}
		}
	}
	for id, shop := range c.Shops.All() {
		if shop.Keeper != "" && c.Npcs.Get(shop.Keeper) == nil {
			return fmt.Errorf("shop %s: unknown keeper %s", id, shop.Keeper)
		}
		for _, line := range shop.Inventory {
			if c.Items.Get(line.Item) == nil {
				return fmt.Errorf("shop %s: unknown stock item %s", id, line.Item)
			}
		}
	}
	for key, comp := range c.Zones.Compositions() {
		for _, e := range comp {
			if c.Npcs.Get(e.Template) == nil {
				return fmt.Errorf("composition %s: unknown npc template %s", key, e.Template)
			}
		}
	}
	return nil
}
