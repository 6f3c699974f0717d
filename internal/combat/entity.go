// Package combat implements per-room turn-based combat: initiative order,
// primary/minor action budgets, auto-attack pacing by weapon speed, the
// accuracy-versus-dodge contest, armor mitigation, and defeat hand-off.
// The engine owns combat state only; entities, rooms, and persistence stay
// behind the interfaces below.
package combat

import (
	"github.com/saltmere/server/internal/world"
)

// RNG is the engine's dice source. *math/rand.Rand satisfies it; tests
// can script rolls.
type RNG interface {
	world.RNG
	Float64() float64
}

// Combatant kinds.
const (
	KindPlayer   = "player"
	KindNpc      = "npc"
	KindCreature = "creature"
)

// Entity is one fighting thing: a player, a template NPC, or a runtime
// creature instance. Adapters in the game package implement it.
type Entity interface {
	Name() string
	Alive() bool
	Health() int
	MaxHealth() int
	// ApplyDamage reduces health and returns the remainder, floored at 0.
	ApplyDamage(amount int) int
	AttributeBonus(attr string) int
	RollSkill(rng world.RNG, skill string, mod int) world.CheckResult
	AdvanceSkill(rng world.RNG, skill string, success bool) bool
	// Weapon returns nil when fighting unarmed.
	Weapon() Weapon
	ArmorPieces() []ArmorPiece
}

// Weapon is the attack-relevant view of an equipped weapon.
type Weapon interface {
	Label() string
	DamageRange() (min, max int)
	DamageType() string
	CritChance() float64
	SpeedCost() float64
	// Wear applies one use of durability loss. Returns true when the
	// weapon just broke.
	Wear(amount int) bool
}

// ArmorPiece is the mitigation-relevant view of one equipped armor item.
type ArmorPiece interface {
	Label() string
	// Reduction returns the DR this piece offers against a damage type,
	// zero when it does not apply or the piece is already ruined.
	Reduction(damageType string) int
	// Degrade reduces armor HP. Returns true when the piece just gave out.
	Degrade(amount int) bool
}

// Unarmed fallbacks.
const (
	UnarmedDamageMin  = 1
	UnarmedDamageMax  = 1
	UnarmedDamageType = "bludgeoning"
	UnarmedCritChance = 0.01
	UnarmedSpeedCost  = 1.0
)
