// Package world holds the live player model and the in-process registry of
// connected players. Player structs are owned by the game loop goroutine;
// everything else reaches them through queued commands.
package world

// StartRoom is where new characters wake up.
const StartRoom = "black_anchor_common"

// Player is the persistent character plus its live session linkage.
// Serialized as the player document; session fields are never persisted.
type Player struct {
	Name       string                `json:"name"`
	RoomID     string                `json:"room_id"`
	Health     int                   `json:"health"`
	MaxHealth  int                   `json:"max_health"`
	Mana       int                   `json:"mana"`
	MaxMana    int                   `json:"max_mana"`
	Stamina    int                   `json:"stamina"`
	MaxStamina int                   `json:"max_stamina"`
	Level      int                   `json:"level"`
	Experience int                   `json:"experience"`
	Gold       int                   `json:"gold"`
	Inventory  []*OwnedItem          `json:"inventory"`
	Equipped   map[string]*OwnedItem `json:"equipped"`
	Attributes map[string]int        `json:"attributes"`
	Skills     map[string]int        `json:"skills"`

	SessionID uint64 `json:"-"`
	Admin     bool   `json:"-"`
	Dirty     bool   `json:"-"` // needs a persist flush
}

// NewPlayer creates a fresh character with baseline stats.
func NewPlayer(name string) *Player {
	skills := make(map[string]int, len(skillAttributes))
	for s := range skillAttributes {
		skills[s] = 1
	}
	return &Player{
		Name:       name,
		RoomID:     StartRoom,
		Health:     100,
		MaxHealth:  100,
		Mana:       50,
		MaxMana:    50,
		Stamina:    100,
		MaxStamina: 100,
		Level:      1,
		Gold:       120,
		Equipped:   map[string]*OwnedItem{},
		Attributes: map[string]int{
			AttrPhysical:  10,
			AttrMental:    10,
			AttrSpiritual: 10,
			AttrSocial:    10,
		},
		Skills: skills,
	}
}

// AttributeBonus returns the bonus for one named attribute.
func (p *Player) AttributeBonus(name string) int {
	return AttributeBonus(attrValue(p.Attributes, name))
}

// RollSkillCheck performs a d100 check against one of the player's skills.
func (p *Player) RollSkillCheck(rng RNG, skill string, mod int) CheckResult {
	return RollCheck(rng, p.Skills, p.Attributes, skill, mod)
}

// CheckSkillAdvancement rolls use-based advancement after a skill use.
func (p *Player) CheckSkillAdvancement(rng RNG, skill string, success bool) bool {
	if AdvanceSkill(rng, p.Skills, skill, success) {
		p.Dirty = true
		return true
	}
	return false
}

// ApplyDamage reduces health, flooring at zero. Returns remaining health.
func (p *Player) ApplyDamage(amount int) int {
	p.Health -= amount
	if p.Health < 0 {
		p.Health = 0
	}
	p.Dirty = true
	return p.Health
}

// Heal restores health up to the maximum.
func (p *Player) Heal(amount int) {
	p.Health += amount
	if p.Health > p.MaxHealth {
		p.Health = p.MaxHealth
	}
	p.Dirty = true
}

// Alive reports whether the player is still standing.
func (p *Player) Alive() bool { return p.Health > 0 }

// AddExperience grants exp and marks the player dirty.
func (p *Player) AddExperience(amount int) {
	if amount <= 0 {
		return
	}
	p.Experience += amount
	p.Dirty = true
}

// FindInventory returns the first carried item matching the given item id,
// or nil.
func (p *Player) FindInventory(itemID string) *OwnedItem {
	for _, it := range p.Inventory {
		if it.ItemID == itemID {
			return it
		}
	}
	return nil
}

// RemoveInventory removes one owned item by UID. Returns true on removal.
func (p *Player) RemoveInventory(uid string) bool {
	for i, it := range p.Inventory {
		if it.UID == uid {
			p.Inventory = append(p.Inventory[:i], p.Inventory[i+1:]...)
			p.Dirty = true
			return true
		}
	}
	return false
}

// Weapon returns the equipped weapon, or nil for unarmed.
func (p *Player) Weapon() *OwnedItem {
	return p.Equipped[SlotWeapon]
}

// Equip places an item in a slot, canonicalizing legacy aliases. Any
// previous occupant is returned.
func (p *Player) Equip(slot string, item *OwnedItem) *OwnedItem {
	slot = CanonicalSlot(slot)
	prev := p.Equipped[slot]
	p.Equipped[slot] = item
	p.Dirty = true
	return prev
}

// Unequip empties a slot, returning the removed item or nil.
func (p *Player) Unequip(slot string) *OwnedItem {
	slot = CanonicalSlot(slot)
	prev := p.Equipped[slot]
	if prev != nil {
		delete(p.Equipped, slot)
		p.Dirty = true
	}
	return prev
}

// ArmorPieces returns every equipped armor-slot item in stable slot
// order, including items stored under legacy alias keys.
func (p *Player) ArmorPieces() []*OwnedItem {
	var out []*OwnedItem
	for _, slot := range ArmorSlots {
		if it := p.Equipped[slot]; it != nil {
			out = append(out, it)
		}
	}
	for _, legacy := range []string{"armor", "offhand"} {
		if it := p.Equipped[legacy]; it != nil {
			out = append(out, it)
		}
	}
	return out
}
