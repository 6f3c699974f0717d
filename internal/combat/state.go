package combat

import (
	"sort"
	"time"
)

// Stances a combatant can hold. Several may be held at once; the first in
// the list is shown.
type Stance string

const (
	Observing    Stance = "Observing"
	Engaged      Stance = "Engaged"
	Supporting   Stance = "Supporting"
	Disengaging  Stance = "Disengaging"
	Exposed      Stance = "Exposed"
	Pinned       Stance = "Pinned"
	Staggered    Stance = "Staggered"
)

// Action kinds for the per-round budget.
const (
	ActionNone     = ""
	ActionAttack   = "attack"
	ActionManeuver = "maneuver"
	ActionSupport  = "support"
	ActionMove     = "move"
	ActionReady    = "ready"
	ActionInteract = "interact"
)

// Combatant is one participant in a room's combat.
type Combatant struct {
	Name       string
	Kind       string // player, npc, creature
	Entity     Entity
	Stances    []Stance
	Target     string
	Initiative int
}

// DisplayStance returns the stance shown in summaries.
func (c *Combatant) DisplayStance() Stance {
	if len(c.Stances) == 0 {
		return Observing
	}
	return c.Stances[0]
}

// HasStance reports whether the combatant currently holds a stance.
func (c *Combatant) HasStance(s Stance) bool {
	for _, have := range c.Stances {
		if have == s {
			return true
		}
	}
	return false
}

// AddStance prepends a stance, making it the displayed one.
func (c *Combatant) AddStance(s Stance) {
	if c.HasStance(s) {
		return
	}
	c.Stances = append([]Stance{s}, c.Stances...)
}

// TurnActions is the per-round action budget of one combatant.
type TurnActions struct {
	Primary string
	Minor   string
}

// OrderEntry is one slot of the initiative order.
type OrderEntry struct {
	Name       string
	Kind       string
	Initiative int
}

// State is the combat record of one room. Owned by the engine; read-only
// for everyone else.
type State struct {
	RoomID        string
	Active        bool
	Round         int
	Order         []OrderEntry
	TurnIndex     int
	Combatants    map[string]*Combatant
	Actions       map[string]*TurnActions
	TurnStartedAt map[string]time.Time
}

func newState(roomID string) *State {
	return &State{
		RoomID:        roomID,
		Round:         1,
		Combatants:    make(map[string]*Combatant),
		Actions:       make(map[string]*TurnActions),
		TurnStartedAt: make(map[string]time.Time),
	}
}

// Current returns the combatant whose turn it is, nil when the order is
// empty.
func (s *State) Current() *Combatant {
	if len(s.Order) == 0 {
		return nil
	}
	if s.TurnIndex >= len(s.Order) {
		return nil
	}
	return s.Combatants[s.Order[s.TurnIndex].Name]
}

// Players returns the names of player combatants in name order.
func (s *State) Players() []string {
	var out []string
	for _, e := range s.Order {
		if e.Kind == KindPlayer {
			out = append(out, e.Name)
		}
	}
	sort.Strings(out)
	return out
}
