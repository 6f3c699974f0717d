package game

import (
	"math"

	"github.com/saltmere/server/internal/combat"
	"github.com/saltmere/server/internal/data"
	"github.com/saltmere/server/internal/state"
	"github.com/saltmere/server/internal/world"
)

// playerEntity adapts a live player to the combat engine. Durability loss
// on gear scales with the weather of the room the player stands in.
type playerEntity struct {
	g *Game
	p *world.Player
}

func (g *Game) playerEntity(p *world.Player) *playerEntity {
	return &playerEntity{g: g, p: p}
}

func (e *playerEntity) Name() string   { return e.p.Name }
func (e *playerEntity) Alive() bool    { return e.p.Alive() }
func (e *playerEntity) Health() int    { return e.p.Health }
func (e *playerEntity) MaxHealth() int { return e.p.MaxHealth }

func (e *playerEntity) ApplyDamage(amount int) int {
	e.p.Dirty = true
	return e.p.ApplyDamage(amount)
}

func (e *playerEntity) AttributeBonus(attr string) int {
	return e.p.AttributeBonus(attr)
}

func (e *playerEntity) RollSkill(rng world.RNG, skill string, mod int) world.CheckResult {
	return e.p.RollSkillCheck(rng, skill, mod)
}

func (e *playerEntity) AdvanceSkill(rng world.RNG, skill string, success bool) bool {
	if e.p.CheckSkillAdvancement(rng, skill, success) {
		e.g.sendTo(e.p, "Your "+skill+" improves.")
		return true
	}
	return false
}

// wearScale is the wear multiplier for the player's room: 1 plus the extra
// salt-rain factor, so gear degrades up to twice as fast at full intensity.
func (e *playerEntity) wearScale() float64 {
	room := e.g.catalog.Rooms.Get(e.p.RoomID)
	if room == nil {
		return 1
	}
	return 1 + e.g.weather.DurabilityLossScale(room.Region, room.Exposure)
}

func (e *playerEntity) Weapon() combat.Weapon {
	owned := e.p.Weapon()
	if owned == nil || owned.Broken() {
		return nil
	}
	tpl := e.g.catalog.Items.Get(owned.ItemID)
	if tpl == nil || !tpl.IsWeapon() {
		return nil
	}
	return &ownedWeapon{owner: e, owned: owned, tpl: tpl}
}

func (e *playerEntity) ArmorPieces() []combat.ArmorPiece {
	var pieces []combat.ArmorPiece
	for _, owned := range e.p.ArmorPieces() {
		tpl := e.g.catalog.Items.Get(owned.ItemID)
		if tpl == nil || !tpl.IsArmor() {
			continue
		}
		pieces = append(pieces, &ownedArmor{owner: e, owned: owned, tpl: tpl})
	}
	return pieces
}

// ownedWeapon is the combat view of one equipped weapon copy.
type ownedWeapon struct {
	owner *playerEntity
	owned *world.OwnedItem
	tpl   *data.ItemTemplate
}

func (w *ownedWeapon) Label() string { return w.tpl.Name }

func (w *ownedWeapon) DamageRange() (int, int) {
	return w.tpl.DamageMin, w.tpl.DamageMax
}

func (w *ownedWeapon) DamageType() string {
	if w.tpl.DamageType == "" {
		return data.DamageBludgeoning
	}
	return w.tpl.DamageType
}

func (w *ownedWeapon) CritChance() float64 { return w.tpl.CritChance }

func (w *ownedWeapon) SpeedCost() float64 {
	if w.tpl.SpeedCost <= 0 {
		return 1
	}
	return w.tpl.SpeedCost
}

func (w *ownedWeapon) Wear(amount int) bool {
	w.owner.p.Dirty = true
	return w.owned.Wear(scaleWear(amount, w.owner.wearScale()))
}

// ownedArmor is the mitigation view of one equipped armor copy.
type ownedArmor struct {
	owner *playerEntity
	owned *world.OwnedItem
	tpl   *data.ItemTemplate
}

func (a *ownedArmor) Label() string { return a.tpl.Name }

func (a *ownedArmor) Reduction(damageType string) int {
	if a.owned.ArmorHP <= 0 {
		return 0
	}
	dr := a.tpl.DamageReduction[damageType]
	if dr < 0 {
		return 0
	}
	return dr
}

func (a *ownedArmor) Degrade(amount int) bool {
	a.owner.p.Dirty = true
	return a.owned.DamageArmor(scaleWear(amount, a.owner.wearScale()))
}

// scaleWear applies the weather multiplier, rounding half up and never
// below the base amount.
func scaleWear(amount int, scale float64) int {
	if scale <= 1 {
		return amount
	}
	scaled := int(math.Round(float64(amount) * scale))
	if scaled < amount {
		return amount
	}
	return scaled
}

// npcEntity adapts an NPC to the combat engine. Encounter creatures carry
// a runtime instance whose health the adapter writes through; scheduled
// NPCs fight on template stats with per-fight health.
type npcEntity struct {
	name string // unique within the room's fight
	tpl  *data.NpcTemplate
	inst *state.Instance // nil for scheduled NPCs

	hp    int
	maxHP int

	weapon *npcWeapon
	armor  []combat.ArmorPiece
}

func (g *Game) creatureEntity(name string, inst *state.Instance, tpl *data.NpcTemplate) *npcEntity {
	e := &npcEntity{name: name, tpl: tpl, inst: inst, hp: inst.HPCurrent, maxHP: inst.HPMax}
	if e.maxHP <= 0 {
		e.maxHP = tpl.MaxHealth
		e.hp = e.maxHP
	}
	g.outfitNpc(e)
	return e
}

func (g *Game) scheduledNpcEntity(name string, tpl *data.NpcTemplate) *npcEntity {
	e := &npcEntity{name: name, tpl: tpl, hp: tpl.MaxHealth, maxHP: tpl.MaxHealth}
	g.outfitNpc(e)
	return e
}

// outfitNpc resolves the template's equipped slots into weapon and armor
// views once, at fight entry.
func (g *Game) outfitNpc(e *npcEntity) {
	for slot, itemID := range e.tpl.Equipped {
		tpl := g.catalog.Items.Get(itemID)
		if tpl == nil {
			continue
		}
		if world.CanonicalSlot(slot) == world.SlotWeapon && tpl.IsWeapon() {
			e.weapon = &npcWeapon{tpl: tpl, durability: tpl.Durability}
			continue
		}
		if tpl.IsArmor() {
			e.armor = append(e.armor, &npcArmor{tpl: tpl, hp: tpl.ArmorHP})
		}
	}
}

func (e *npcEntity) Name() string   { return e.name }
func (e *npcEntity) Alive() bool    { return e.hp > 0 }
func (e *npcEntity) Health() int    { return e.hp }
func (e *npcEntity) MaxHealth() int { return e.maxHP }

func (e *npcEntity) ApplyDamage(amount int) int {
	e.hp -= amount
	if e.hp < 0 {
		e.hp = 0
	}
	if e.inst != nil {
		e.inst.HPCurrent = e.hp
	}
	return e.hp
}

func (e *npcEntity) AttributeBonus(attr string) int {
	return world.AttributeBonus(e.tpl.Attribute(attr))
}

func (e *npcEntity) RollSkill(rng world.RNG, skill string, mod int) world.CheckResult {
	return world.RollCheck(rng, e.tpl.Skills, e.tpl.Attributes, skill, mod)
}

// NPCs do not advance skills.
func (e *npcEntity) AdvanceSkill(world.RNG, string, bool) bool { return false }

func (e *npcEntity) Weapon() combat.Weapon {
	if e.weapon == nil || e.weapon.durability <= 0 {
		return nil
	}
	return e.weapon
}

func (e *npcEntity) ArmorPieces() []combat.ArmorPiece { return e.armor }

type npcWeapon struct {
	tpl        *data.ItemTemplate
	durability int
}

func (w *npcWeapon) Label() string { return w.tpl.Name }

func (w *npcWeapon) DamageRange() (int, int) { return w.tpl.DamageMin, w.tpl.DamageMax }

func (w *npcWeapon) DamageType() string {
	if w.tpl.DamageType == "" {
		return data.DamageBludgeoning
	}
	return w.tpl.DamageType
}

func (w *npcWeapon) CritChance() float64 { return w.tpl.CritChance }

func (w *npcWeapon) SpeedCost() float64 {
	if w.tpl.SpeedCost <= 0 {
		return 1
	}
	return w.tpl.SpeedCost
}

func (w *npcWeapon) Wear(amount int) bool {
	if w.durability <= 0 {
		return false
	}
	w.durability -= amount
	return w.durability <= 0
}

type npcArmor struct {
	tpl *data.ItemTemplate
	hp  int
}

func (a *npcArmor) Label() string { return a.tpl.Name }

func (a *npcArmor) Reduction(damageType string) int {
	if a.hp <= 0 {
		return 0
	}
	dr := a.tpl.DamageReduction[damageType]
	if dr < 0 {
		return 0
	}
	return dr
}

func (a *npcArmor) Degrade(amount int) bool {
	if a.hp <= 0 {
		return false
	}
	a.hp -= amount
	return a.hp <= 0
}
