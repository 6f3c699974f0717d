package combat

import (
	"github.com/saltmere/server/internal/world"
)

// AttackResult reports everything one resolved attack did, so the caller
// can narrate it and run the defeat hand-off.
type AttackResult struct {
	Attacker string
	Target   string

	Accuracy world.CheckResult
	Dodge    world.CheckResult

	Hit      bool
	Critical bool
	Glancing bool

	WeaponLabel string
	DamageType  string
	Damage      int // final damage dealt, post-armor
	Mitigation  Mitigation
	WeaponBroke bool

	TargetHealth   int
	TargetDefeated bool
}

// resolveAttack runs the full accuracy-versus-dodge contest between two
// combatants and applies its consequences to both entities.
func (e *Engine) resolveAttack(attacker, target *Combatant) *AttackResult {
	res := &AttackResult{Attacker: attacker.Name, Target: target.Name}

	res.Accuracy = attacker.Entity.RollSkill(e.rng, "fighting", 0)
	res.Dodge = target.Entity.RollSkill(e.rng, "dodging", 0)

	// The attacker needs an accuracy success, and then to beat the dodge:
	// either roll under the dodge roll or have the dodge itself fail.
	// Equal rolls go to the defender.
	accuracyOK := res.Accuracy.Roll <= res.Accuracy.Effective
	dodgeFailed := res.Dodge.Roll > res.Dodge.Effective
	res.Hit = accuracyOK && (res.Accuracy.Roll < res.Dodge.Roll || dodgeFailed)

	if !res.Hit {
		attacker.Entity.AdvanceSkill(e.rng, "fighting", false)
		target.Entity.AdvanceSkill(e.rng, "dodging", true)
		res.TargetHealth = target.Entity.Health()
		return res
	}

	// Weapon profile, unarmed fallback.
	dmgMin, dmgMax := UnarmedDamageMin, UnarmedDamageMax
	critChance := UnarmedCritChance
	res.DamageType = UnarmedDamageType
	res.WeaponLabel = "fists"
	weapon := attacker.Entity.Weapon()
	if weapon != nil {
		dmgMin, dmgMax = weapon.DamageRange()
		critChance = weapon.CritChance()
		res.DamageType = weapon.DamageType()
		res.WeaponLabel = weapon.Label()
	}

	res.Critical = res.Accuracy.Degree == world.Critical || e.rng.Float64() <= critChance
	// A glancing hit means the dodge only just failed to connect.
	res.Glancing = float64(res.Dodge.Roll) >= 0.8*float64(res.Dodge.Effective) &&
		res.Dodge.Roll <= res.Dodge.Effective

	damage := dmgMin
	if dmgMax > dmgMin {
		damage += e.rng.Intn(dmgMax - dmgMin + 1)
	}
	damage += attacker.Entity.AttributeBonus(world.AttrPhysical)
	if res.Critical {
		damage *= 2
	}
	if res.Glancing {
		damage /= 2
		if damage < 1 {
			damage = 1
		}
	}

	res.Mitigation = ApplyArmor(target.Entity.ArmorPieces(), damage, res.DamageType)
	res.Damage = res.Mitigation.Damage
	res.TargetHealth = target.Entity.ApplyDamage(res.Damage)
	res.TargetDefeated = res.TargetHealth <= 0

	if weapon != nil {
		res.WeaponBroke = weapon.Wear(1)
	}

	attacker.Entity.AdvanceSkill(e.rng, "fighting", true)
	target.Entity.AdvanceSkill(e.rng, "dodging", false)
	return res
}
