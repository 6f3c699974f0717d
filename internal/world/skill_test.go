package world

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributeBonus(t *testing.T) {
	cases := map[int]int{5: 0, 6: 0, 7: 1, 10: 2, 15: 5, 3: -1}
	for value, want := range cases {
		assert.Equal(t, want, AttributeBonus(value), "value %d", value)
	}
}

func TestEffectiveSkill(t *testing.T) {
	attrs := map[string]int{AttrPhysical: 14, AttrMental: 10}
	skills := map[string]int{"fighting": 30}

	// 30 + floor((14-5)/2)=4 + floor((10-5)/2)/2=1
	assert.Equal(t, 35, EffectiveSkill(skills, attrs, "fighting", 0))
	assert.Equal(t, 25, EffectiveSkill(skills, attrs, "fighting", -10))
	assert.Equal(t, 0, EffectiveSkill(skills, attrs, "fighting", -50))
	assert.Equal(t, 0, EffectiveSkill(skills, attrs, "sailing", 0))
}

func TestRollCheckDegrees(t *testing.T) {
	skills := map[string]int{"fighting": 50}
	attrs := map[string]int{}

	counts := map[Degree]int{}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		res := RollCheck(rng, skills, attrs, "fighting", 0)
		require.GreaterOrEqual(t, res.Roll, 1)
		require.LessOrEqual(t, res.Roll, 100)
		switch {
		case res.Roll <= res.Effective/10:
			require.Equal(t, Critical, res.Degree)
		case res.Roll <= res.Effective:
			require.Equal(t, Success, res.Degree)
		case res.Roll >= 95:
			require.Equal(t, CriticalFailure, res.Degree)
		default:
			require.Equal(t, Failure, res.Degree)
		}
		counts[res.Degree]++
	}
	// All four degrees occur at skill ~52.
	for _, d := range []Degree{Critical, Success, Failure, CriticalFailure} {
		assert.Greater(t, counts[d], 0, "degree %s never rolled", d)
	}
}

func TestAdvanceSkillCapsAtHundred(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	skills := map[string]int{"fighting": 100}
	assert.False(t, AdvanceSkill(rng, skills, "fighting", true))
	assert.Equal(t, 100, skills["fighting"])
}

func TestAdvanceSkillRates(t *testing.T) {
	// At skill 20 the gain chance is 8% on success, 2% (floor of 2.4) on
	// failure. Over many trials the observed rates must straddle those.
	trial := func(success bool) int {
		rng := rand.New(rand.NewSource(99))
		gains := 0
		for i := 0; i < 10000; i++ {
			skills := map[string]int{"fighting": 20}
			if AdvanceSkill(rng, skills, "fighting", success) {
				gains++
				require.Equal(t, 21, skills["fighting"])
			}
		}
		return gains
	}
	onSuccess := trial(true)
	onFailure := trial(false)
	assert.InDelta(t, 800, onSuccess, 150)
	assert.InDelta(t, 200, onFailure, 100)
	assert.Greater(t, onSuccess, onFailure)
}

func TestRegistryPresence(t *testing.T) {
	r := NewRegistry()
	a := NewPlayer("Anna")
	a.SessionID = 1
	b := NewPlayer("bert")
	b.SessionID = 2

	require.True(t, r.Add(a))
	require.True(t, r.Add(b))

	// Duplicate after normalization is refused.
	dup := NewPlayer("ANNA")
	dup.SessionID = 3
	assert.False(t, r.Add(dup))

	names := func(roomID string) []string {
		var out []string
		for _, p := range r.InRoom(roomID) {
			out = append(out, p.Name)
		}
		return out
	}
	assert.Equal(t, []string{"Anna", "bert"}, names(StartRoom))

	r.Move(a, "dock")
	assert.Equal(t, []string{"bert"}, names(StartRoom))
	assert.Equal(t, []string{"Anna"}, names("dock"))
	assert.Equal(t, "dock", a.RoomID)

	r.Remove(b)
	assert.Nil(t, r.ByName("Bert"))
	assert.Equal(t, 1, r.Count())
	assert.Same(t, a, r.BySession(1))
}
