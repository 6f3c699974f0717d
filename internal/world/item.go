package world

import (
	"github.com/google/uuid"

	"github.com/saltmere/server/internal/data"
)

// Equipment slots. Old player documents may carry the legacy names
// "armor" and "offhand"; CanonicalSlot folds them in.
const (
	SlotWeapon = "weapon"
	SlotHead   = "head"
	SlotChest  = "chest"
	SlotArms   = "arms"
	SlotLegs   = "legs"
	SlotShield = "shield"
)

// ArmorSlots lists the slots armor mitigation inspects, in stable order.
var ArmorSlots = []string{SlotShield, SlotChest, SlotHead, SlotArms, SlotLegs}

// CanonicalSlot maps legacy slot aliases onto current names.
func CanonicalSlot(slot string) string {
	switch slot {
	case "armor":
		return SlotChest
	case "offhand":
		return SlotShield
	}
	return slot
}

// OwnedItem is one concrete copy of a catalog item. The template stays
// immutable; per-copy wear lives here. ArmorHP only matters for armor.
type OwnedItem struct {
	UID        string `json:"uid"`
	ItemID     string `json:"item_id"`
	Durability int    `json:"durability"`
	ArmorHP    int    `json:"armor_hp,omitempty"`
	Quantity   int    `json:"quantity,omitempty"`
}

// NewOwnedItem mints a copy of a template at full durability.
func NewOwnedItem(tpl *data.ItemTemplate) *OwnedItem {
	return &OwnedItem{
		UID:        uuid.NewString(),
		ItemID:     tpl.ID,
		Durability: tpl.Durability,
		ArmorHP:    tpl.ArmorHP,
	}
}

// Broken reports whether the copy has worn out. Armor counts as broken
// when its armor HP is gone even if raw durability remains.
func (o *OwnedItem) Broken() bool { return o.Durability <= 0 }

// Wear reduces durability by amount, stopping at zero. Returns true when
// the item just broke.
func (o *OwnedItem) Wear(amount int) bool {
	if o.Durability <= 0 {
		return false
	}
	o.Durability -= amount
	if o.Durability < 0 {
		o.Durability = 0
	}
	return o.Durability == 0
}

// DamageArmor reduces armor HP by amount, stopping at zero. Returns true
// when the piece just gave out.
func (o *OwnedItem) DamageArmor(amount int) bool {
	if o.ArmorHP <= 0 {
		return false
	}
	o.ArmorHP -= amount
	if o.ArmorHP < 0 {
		o.ArmorHP = 0
	}
	return o.ArmorHP == 0
}
