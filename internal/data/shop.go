package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ShopItem is one line of a shop's stock list.
type ShopItem struct {
	Item  string `yaml:"item"`
	Price int    `yaml:"price"` // 0 = use the item template's value
	Stock int    `yaml:"stock"` // 0 = unlimited
}

// Shop holds static data for a shop loaded from YAML. Open and Close are
// world clock times "HH:MM"; Open > Close wraps past midnight. ClosedDays
// and FestivalDays hold world day numbers.
type Shop struct {
	ID           string     `yaml:"shop_id"`
	Name         string     `yaml:"name"`
	Keeper       string     `yaml:"keeper"` // NPC id of the merchant
	Open         string     `yaml:"open"`
	Close        string     `yaml:"close"`
	ClosedDays   []int      `yaml:"closed_days"`
	FestivalDays []int      `yaml:"festival_days"`
	Inventory    []ShopItem `yaml:"inventory"`
	BuybackRate  float64    `yaml:"buyback_rate"` // fraction of value paid when buying from players
}

type shopListFile struct {
	Shops []Shop `yaml:"shops"`
}

// ShopTable holds all shops indexed by ID.
type ShopTable struct {
	shops map[string]*Shop
}

// LoadShopTable loads shops from a YAML file.
func LoadShopTable(path string) (*ShopTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shops: %w", err)
	}
	var f shopListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse shops: %w", err)
	}
	t := &ShopTable{shops: make(map[string]*Shop, len(f.Shops))}
	for i := range f.Shops {
		s := &f.Shops[i]
		if s.Open == "" {
			s.Open = "08:00"
		}
		if s.Close == "" {
			s.Close = "20:00"
		}
		if s.BuybackRate <= 0 {
			s.BuybackRate = 0.5
		}
		t.shops[s.ID] = s
	}
	return t, nil
}

// Get returns a shop by ID, or nil if not found.
func (t *ShopTable) Get(id string) *Shop {
	return t.shops[id]
}

// Count returns the number of loaded shops.
func (t *ShopTable) Count() int {
	return len(t.shops)
}

// All returns every shop. Iteration order is not defined.
func (t *ShopTable) All() map[string]*Shop {
	return t.shops
}
