package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Item types.
const (
	TypeWeapon     = "weapon"
	TypeArmor      = "armor"
	TypeConsumable = "consumable"
	TypeItem       = "item"
)

// Damage types a weapon deals and armor resists.
const (
	DamageSlashing    = "slashing"
	DamagePiercing    = "piercing"
	DamageBludgeoning = "bludgeoning"
)

// ItemTemplate holds static data for an item type loaded from YAML.
// Per-copy mutable state (durability) lives on world.OwnedItem, never here.
type ItemTemplate struct {
	ID          string `yaml:"item_id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Type        string `yaml:"item_type"`
	Value       int    `yaml:"value"`

	// Weapon fields.
	Category   string  `yaml:"category"` // Melee, Ranged
	Class      string  `yaml:"class"`    // Sword, Dagger, Bow, ...
	Hands      int     `yaml:"hands"`
	Range      int     `yaml:"range"`
	DamageMin  int     `yaml:"damage_min"`
	DamageMax  int     `yaml:"damage_max"`
	DamageType string  `yaml:"damage_type"`
	CritChance float64 `yaml:"crit_chance"`
	SpeedCost  float64 `yaml:"speed_cost"`
	Durability int     `yaml:"durability"`

	// Armor fields.
	ArmorType       string         `yaml:"armor_type"`       // light, medium, heavy
	DamageReduction map[string]int `yaml:"damage_reduction"` // damage type -> DR
	ArmorSlots      []string       `yaml:"armor_slots"`      // chest, head, arms, legs, shield
	ArmorHP         int            `yaml:"armor_hp"`
}

// IsWeapon reports whether the template describes a weapon.
func (t *ItemTemplate) IsWeapon() bool {
	return t.Type == TypeWeapon || t.Category != ""
}

// IsArmor reports whether the template describes armor.
func (t *ItemTemplate) IsArmor() bool {
	return t.Type == TypeArmor || t.ArmorType != ""
}

type itemListFile struct {
	Items []ItemTemplate `yaml:"items"`
}

// ItemTable holds all item templates indexed by ID.
type ItemTable struct {
	templates map[string]*ItemTemplate
}

// LoadItemTable loads item templates from a YAML file.
func LoadItemTable(path string) (*ItemTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	var f itemListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}
	t := &ItemTable{templates: make(map[string]*ItemTemplate, len(f.Items))}
	for i := range f.Items {
		it := &f.Items[i]
		if it.Type == "" {
			it.Type = TypeItem
		}
		if it.IsWeapon() {
			if it.Hands < 1 {
				it.Hands = 1
			}
			if it.SpeedCost <= 0 {
				it.SpeedCost = 1.0
			}
			if it.Durability < 1 {
				it.Durability = 50
			}
		}
		if it.IsArmor() {
			if it.Durability < 1 {
				it.Durability = 50
			}
			if it.ArmorHP < 1 {
				it.ArmorHP = 20
			}
		}
		t.templates[it.ID] = it
	}
	return t, nil
}

// Get returns an item template by ID, or nil if not found.
func (t *ItemTable) Get(id string) *ItemTemplate {
	return t.templates[id]
}

// Count returns the number of loaded templates.
func (t *ItemTable) Count() int {
	return len(t.templates)
}
