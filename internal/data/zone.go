package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Encounter row types. Only combat rows spawn anything; the rest burn the
// roll and stamp the cooldown.
const (
	EncounterCombat = "combat"
	EncounterNone   = "none"
	EncounterFlavor = "flavor"
)

// EncounterRow is one band of a zone's d100 encounter table.
type EncounterRow struct {
	MinRoll     int    `yaml:"min_roll"`
	MaxRoll     int    `yaml:"max_roll"`
	Type        string `yaml:"encounter_type"`
	Composition string `yaml:"composition_key"`
	Message     string `yaml:"message"` // flavor rows only
}

// CompositionEntry spawns MinCount..MaxCount instances of one template.
type CompositionEntry struct {
	Template string `yaml:"template"`
	MinCount int    `yaml:"min_count"`
	MaxCount int    `yaml:"max_count"`
}

type zoneFile struct {
	Zones        map[string][]EncounterRow     `yaml:"zones"`
	Compositions map[string][]CompositionEntry `yaml:"compositions"`
}

// ZoneTable holds per-zone encounter tables and the shared composition map.
type ZoneTable struct {
	zones        map[string][]EncounterRow
	compositions map[string][]CompositionEntry
}

// LoadZoneTable loads encounter tables and compositions from a YAML file
// and validates row bounds and composition references.
func LoadZoneTable(path string) (*ZoneTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zones: %w", err)
	}
	var f zoneFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse zones: %w", err)
	}
	t := &ZoneTable{zones: f.Zones, compositions: f.Compositions}
	if t.zones == nil {
		t.zones = map[string][]EncounterRow{}
	}
	if t.compositions == nil {
		t.compositions = map[string][]CompositionEntry{}
	}
	for zone, rows := range t.zones {
		for _, r := range rows {
			if r.MinRoll < 1 || r.MaxRoll > 100 || r.MinRoll > r.MaxRoll {
				return nil, fmt.Errorf("zone %s: bad roll band %d-%d", zone, r.MinRoll, r.MaxRoll)
			}
			if r.Type == EncounterCombat && r.Composition == "" {
				return nil, fmt.Errorf("zone %s: combat row %d-%d has no composition", zone, r.MinRoll, r.MaxRoll)
			}
			if r.Composition != "" {
				if _, ok := t.compositions[r.Composition]; !ok {
					return nil, fmt.Errorf("zone %s: unknown composition %q", zone, r.Composition)
				}
			}
		}
	}
	for key, comp := range t.compositions {
		for _, e := range comp {
			if e.MinCount < 0 || e.MaxCount < e.MinCount {
				return nil, fmt.Errorf("composition %s: bad count range %d-%d for %s", key, e.MinCount, e.MaxCount, e.Template)
			}
		}
	}
	return t, nil
}

// Rows returns the encounter table for a zone, or nil for safe zones.
func (t *ZoneTable) Rows(zone string) []EncounterRow {
	return t.zones[zone]
}

// Composition returns the entries under a composition key.
func (t *ZoneTable) Composition(key string) []CompositionEntry {
	return t.compositions[key]
}

// Count returns the number of zones with encounter tables.
func (t *ZoneTable) Count() int {
	return len(t.zones)
}

// Compositions returns the full composition map. Iteration order is not
// defined.
func (t *ZoneTable) Compositions() map[string][]CompositionEntry {
	return t.compositions
}
