package world

// RNG is the die-rolling dependency of skill checks. *math/rand.Rand
// satisfies it; tests can script rolls.
type RNG interface {
	Intn(n int) int
}

// Attribute names.
const (
	AttrPhysical  = "physical"
	AttrMental    = "mental"
	AttrSpiritual = "spiritual"
	AttrSocial    = "social"
)

// Degrees of success for a d100 skill check.
type Degree string

const (
	Critical        Degree = "critical"
	Success         Degree = "success"
	Failure         Degree = "failure"
	CriticalFailure Degree = "critical_failure"
)

// Passed reports whether the degree counts as a success.
func (d Degree) Passed() bool { return d == Critical || d == Success }

// skillAttributes maps each skill to the attributes that modify it.
// Primary bonus applies in full, secondary at half.
var skillAttributes = map[string]struct{ primary, secondary string }{
	"fighting":      {AttrPhysical, AttrMental},
	"dodging":       {AttrPhysical, AttrMental},
	"climbing":      {AttrPhysical, ""},
	"swimming":      {AttrPhysical, ""},
	"throwing":      {AttrPhysical, AttrMental},
	"tracking":      {AttrMental, AttrPhysical},
	"investigating": {AttrMental, AttrSocial},
	"remembering":   {AttrMental, ""},
	"lockpicking":   {AttrMental, AttrPhysical},
	"brewing":       {AttrMental, AttrSpiritual},
	"praying":       {AttrSpiritual, AttrSocial},
	"meditating":    {AttrSpiritual, AttrMental},
	"channeling":    {AttrSpiritual, AttrMental},
	"warding":       {AttrSpiritual, AttrMental},
	"binding":       {AttrSpiritual, ""},
	"persuading":    {AttrSocial, AttrMental},
	"intimidating":  {AttrSocial, AttrPhysical},
	"deceiving":     {AttrSocial, AttrMental},
	"leading":       {AttrSocial, ""},
	"bargaining":    {AttrSocial, AttrMental},
	"repairing":     {AttrPhysical, AttrMental},
	"smithing":      {AttrPhysical, ""},
	"taming":        {AttrSocial, AttrSpiritual},
}

// AttributeBonus converts a raw attribute value into its bonus,
// floor((value - 5) / 2). Integer division floors toward negative
// infinity only for non-negative operands, which attribute values are.
func AttributeBonus(value int) int {
	return (value - 5) / 2
}

// EffectiveSkill computes skill + primary bonus + secondary bonus/2 +
// difficulty modifier, floored at zero. Unknown skills are zero.
func EffectiveSkill(skills map[string]int, attrs map[string]int, skill string, mod int) int {
	base, ok := skills[skill]
	if !ok {
		return 0
	}
	if sa, ok := skillAttributes[skill]; ok {
		if sa.primary != "" {
			base += AttributeBonus(attrValue(attrs, sa.primary))
		}
		if sa.secondary != "" {
			base += AttributeBonus(attrValue(attrs, sa.secondary)) / 2
		}
	}
	base += mod
	if base < 0 {
		return 0
	}
	return base
}

func attrValue(attrs map[string]int, name string) int {
	if v, ok := attrs[name]; ok {
		return v
	}
	return 10
}

// CheckResult is the outcome of one d100 skill check.
type CheckResult struct {
	Skill     string
	Roll      int
	Effective int
	Degree    Degree
}

// RollCheck performs the unified d100 check: roll <= effective/10 is a
// critical, roll <= effective a success, roll >= 95 a critical failure.
func RollCheck(rng RNG, skills, attrs map[string]int, skill string, mod int) CheckResult {
	eff := EffectiveSkill(skills, attrs, skill, mod)
	roll := rng.Intn(100) + 1
	var degree Degree
	switch {
	case roll <= eff/10:
		degree = Critical
	case roll <= eff:
		degree = Success
	case roll >= 95:
		degree = CriticalFailure
	default:
		degree = Failure
	}
	return CheckResult{Skill: skill, Roll: roll, Effective: eff, Degree: degree}
}

// AdvanceSkill rolls use-based skill advancement and applies the gain in
// place. Gain chance is (100-skill)*0.1, reduced to 30% on a failed use,
// capped at skill 100. Returns true when the skill went up.
func AdvanceSkill(rng RNG, skills map[string]int, skill string, success bool) bool {
	cur, ok := skills[skill]
	if !ok || cur >= 100 {
		return false
	}
	chance := float64(100-cur) * 0.1
	if !success {
		chance *= 0.3
	}
	if rng.Intn(100)+1 <= int(chance) {
		skills[skill] = cur + 1
		return true
	}
	return false
}
