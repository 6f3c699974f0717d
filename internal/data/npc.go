package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NPC tiers, ordered. Tier scales the fallback exp award on defeat.
const (
	TierLow  = "Low"
	TierMid  = "Mid"
	TierHigh = "High"
	TierEpic = "Epic"
)

// TierMultiplier returns the exp multiplier for a tier. Unknown tiers
// count as Low.
func TierMultiplier(tier string) int {
	switch tier {
	case TierMid:
		return 2
	case TierHigh:
		return 3
	case TierEpic:
		return 5
	default:
		return 1
	}
}

// TierForLevel derives a tier when the template does not set one.
func TierForLevel(level int) string {
	switch {
	case level <= 5:
		return TierLow
	case level <= 10:
		return TierMid
	case level <= 15:
		return TierHigh
	default:
		return TierEpic
	}
}

// ScheduleBlock places an NPC in a room for a world-time window.
// Start and End are "HH:MM"; Start > End wraps past midnight.
type ScheduleBlock struct {
	Start  string `yaml:"start"`
	End    string `yaml:"end"`
	RoomID string `yaml:"room_id"`
}

// LootEntry is one row of an NPC loot table. Chance is a percentage in
// 1..100; in YAML a bare item id means a guaranteed drop.
type LootEntry struct {
	Item   string `yaml:"item"`
	Chance int    `yaml:"chance"`
}

// UnmarshalYAML accepts either a bare item id string or {item, chance}.
func (l *LootEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		l.Item = value.Value
		l.Chance = 100
		return nil
	}
	type plain LootEntry
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*l = LootEntry(p)
	if l.Chance <= 0 || l.Chance > 100 {
		l.Chance = 100
	}
	return nil
}

// NpcTemplate holds static data for an NPC type loaded from YAML.
type NpcTemplate struct {
	ID          string            `yaml:"npc_id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Level       int               `yaml:"level"`
	Tier        string            `yaml:"tier"`
	Role        string            `yaml:"combat_role"` // Brute, Minion, Boss, Artillery, Healer, Controller
	MaxHealth   int               `yaml:"max_health"`
	Attributes  map[string]int    `yaml:"attributes"` // physical, mental, spiritual, social
	Skills      map[string]int    `yaml:"skills"`
	Equipped    map[string]string `yaml:"equipped"` // slot -> item id
	Hostile     bool              `yaml:"hostile"`
	ExpValue    int               `yaml:"exp_value"`
	LootTable   []LootEntry       `yaml:"loot_table"`
	Keywords    map[string]string `yaml:"keywords"` // talk keyword -> reply
	Schedule    []ScheduleBlock   `yaml:"schedule"`
	IsMerchant  bool              `yaml:"is_merchant"`
	ShopID      string            `yaml:"shop_id"`
}

// Attribute returns a named attribute, defaulting to 10.
func (n *NpcTemplate) Attribute(name string) int {
	if v, ok := n.Attributes[name]; ok {
		return v
	}
	return 10
}

type npcListFile struct {
	Npcs []NpcTemplate `yaml:"npcs"`
}

// NpcTable holds all NPC templates indexed by ID.
type NpcTable struct {
	templates map[string]*NpcTemplate
}

// LoadNpcTable loads NPC templates from a YAML file.
func LoadNpcTable(path string) (*NpcTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read npcs: %w", err)
	}
	var f npcListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse npcs: %w", err)
	}
	t := &NpcTable{templates: make(map[string]*NpcTemplate, len(f.Npcs))}
	for i := range f.Npcs {
		npc := &f.Npcs[i]
		if npc.Level < 1 {
			npc.Level = 1
		}
		if npc.Tier == "" {
			npc.Tier = TierForLevel(npc.Level)
		}
		if npc.MaxHealth < 1 {
			npc.MaxHealth = 50
		}
		t.templates[npc.ID] = npc
	}
	return t, nil
}

// Get returns an NPC template by ID, or nil if not found.
func (t *NpcTable) Get(id string) *NpcTemplate {
	return t.templates[id]
}

// Count returns the number of loaded templates.
func (t *NpcTable) Count() int {
	return len(t.templates)
}

// All returns every template. Iteration order is not defined.
func (t *NpcTable) All() map[string]*NpcTemplate {
	return t.templates
}
