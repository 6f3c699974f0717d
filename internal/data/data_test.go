package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadEmptyDir(t *testing.T) {
	c, err := Load(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 0, c.Rooms.Count())
	assert.Equal(t, 0, c.Npcs.Count())
	assert.Equal(t, 0, c.Items.Count())
	assert.Equal(t, 0, c.Shops.Count())
	assert.Equal(t, 0, c.Zones.Count())

	// Weather falls back to the built-in table, not an empty one.
	require.NotNil(t, c.Weather)
	assert.NotEmpty(t, c.Weather.Transitions["clear"])
	assert.NotEmpty(t, c.Weather.Messages)
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rooms.yaml", `
rooms:
  - room_id: quay
    name: The Quay
    zone: docks
    exits:
      south: cellar
  - room_id: cellar
    name: Smuggler Cellar
    exposure: indoor
    region: underhill
    shop_id: fence
    npcs: [keela]
`)
	writeFile(t, dir, "items.yaml", `
items:
  - item_id: gaff_hook
    name: gaff hook
    item_type: weapon
    category: Melee
    damage_min: 2
    damage_max: 5
    damage_type: piercing
  - item_id: oil_slicker
    name: oiled slicker
    item_type: armor
    armor_type: light
    armor_slots: [chest]
`)
	writeFile(t, dir, "npcs.yaml", `
npcs:
  - npc_id: keela
    name: Keela
    level: 7
    loot_table:
      - gaff_hook
      - {item: oil_slicker, chance: 40}
    schedule:
      - {start: "08:00", end: "18:00", room_id: cellar}
  - npc_id: harbor_rat
    name: Harbor Rat
    hostile: true
`)
	writeFile(t, dir, "shops.yaml", `
shops:
  - shop_id: fence
    name: The Fence
    keeper: keela
    inventory:
      - {item: gaff_hook, price: 12, stock: 1}
`)
	writeFile(t, dir, "zones.yaml", `
zones:
  docks:
    - {min_roll: 1, max_roll: 30, encounter_type: combat, composition_key: rats}
    - {min_roll: 31, max_roll: 100, encounter_type: none}
compositions:
  rats:
    - {template: harbor_rat, min_count: 1, max_count: 3}
`)

	c, err := Load(dir, zap.NewNop())
	require.NoError(t, err)

	quay := c.Rooms.Get("quay")
	require.NotNil(t, quay)
	assert.Equal(t, ExposureOutdoor, quay.Exposure)
	assert.Equal(t, "town", quay.Region)
	assert.Equal(t, "underhill", c.Rooms.Get("cellar").Region)

	hook := c.Items.Get("gaff_hook")
	require.NotNil(t, hook)
	assert.True(t, hook.IsWeapon())
	assert.Equal(t, 1, hook.Hands)
	assert.Equal(t, 1.0, hook.SpeedCost)
	assert.Equal(t, 50, hook.Durability)

	slicker := c.Items.Get("oil_slicker")
	require.NotNil(t, slicker)
	assert.True(t, slicker.IsArmor())
	assert.Equal(t, 20, slicker.ArmorHP)

	keela := c.Npcs.Get("keela")
	require.NotNil(t, keela)
	assert.Equal(t, TierMid, keela.Tier)
	assert.Equal(t, 50, keela.MaxHealth)
	require.Len(t, keela.LootTable, 2)
	assert.Equal(t, 100, keela.LootTable[0].Chance)
	assert.Equal(t, 40, keela.LootTable[1].Chance)

	fence := c.Shops.Get("fence")
	require.NotNil(t, fence)
	assert.Equal(t, "08:00", fence.Open)
	assert.Equal(t, "20:00", fence.Close)
	assert.Equal(t, 0.5, fence.BuybackRate)

	require.Len(t, c.Zones.Rows("docks"), 2)
	assert.Nil(t, c.Zones.Rows("nowhere"))
	require.Len(t, c.Zones.Composition("rats"), 1)
}

func TestLoadRejectsDanglingExit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rooms.yaml", `
rooms:
  - room_id: quay
    name: The Quay
    exits:
      north: nowhere
`)
	_, err := Load(dir, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown room nowhere")
}

func TestLoadRejectsUnknownLootItem(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "npcs.yaml", `
npcs:
  - npc_id: keela
    name: Keela
    loot_table: [phantom_pearl]
`)
	_, err := Load(dir, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown loot item phantom_pearl")
}

func TestLoadRejectsUnknownKeeper(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shops.yaml", `
shops:
  - shop_id: fence
    name: The Fence
    keeper: nobody
`)
	_, err := Load(dir, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keeper nobody")
}

func TestLoadRejectsUnknownCompositionTemplate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "zones.yaml", `
zones:
  docks:
    - {min_roll: 1, max_roll: 100, encounter_type: combat, composition_key: ghosts}
compositions:
  ghosts:
    - {template: gull_wraith, min_count: 1, max_count: 1}
`)
	_, err := Load(dir, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown npc template gull_wraith")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "items.yaml", "items: [this is: not: yaml")
	_, err := Load(dir, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load items.yaml")
}

func TestLootEntryForms(t *testing.T) {
	var entries []LootEntry
	require.NoError(t, yaml.Unmarshal([]byte(`
- rat_tail
- {item: cutlass, chance: 25}
- {item: pearl, chance: 0}
`), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, LootEntry{Item: "rat_tail", Chance: 100}, entries[0])
	assert.Equal(t, LootEntry{Item: "cutlass", Chance: 25}, entries[1])
	assert.Equal(t, 100, entries[2].Chance)
}

func TestZoneTableValidation(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "bad_band.yaml", `
zones:
  docks:
    - {min_roll: 10, max_roll: 5, encounter_type: none}
`)
	_, err := LoadZoneTable(filepath.Join(dir, "bad_band.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad roll band")

	writeFile(t, dir, "no_comp.yaml", `
zones:
  docks:
    - {min_roll: 1, max_roll: 50, encounter_type: combat, composition_key: ghosts}
`)
	_, err = LoadZoneTable(filepath.Join(dir, "no_comp.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown composition "ghosts"`)

	writeFile(t, dir, "no_key.yaml", `
zones:
  docks:
    - {min_roll: 1, max_roll: 50, encounter_type: combat}
`)
	_, err = LoadZoneTable(filepath.Join(dir, "no_key.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no composition")
}

func TestTierDerivation(t *testing.T) {
	assert.Equal(t, TierLow, TierForLevel(3))
	assert.Equal(t, TierMid, TierForLevel(8))
	assert.Equal(t, TierHigh, TierForLevel(14))
	assert.Equal(t, TierEpic, TierForLevel(20))

	assert.Equal(t, 1, TierMultiplier(TierLow))
	assert.Equal(t, 2, TierMultiplier(TierMid))
	assert.Equal(t, 3, TierMultiplier(TierHigh))
	assert.Equal(t, 5, TierMultiplier(TierEpic))
	assert.Equal(t, 1, TierMultiplier("Mythic"))
}
