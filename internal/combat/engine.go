package combat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saltmere/server/internal/errs"
	"github.com/saltmere/server/internal/world"
)

// DefeatHandler runs the hand-off after a combatant drops: instance
// deletion, loot, experience. Called with the engine's room state already
// updated; the handler must not call back into the engine for that room.
type DefeatHandler func(roomID string, defeated *Combatant, killer string)

// Broadcaster delivers a combat line to everyone watching a room.
type Broadcaster func(roomID, line string)

// Engine drives all active room combats. All methods run on the game loop
// goroutine; the ticker calls Tick at 10 Hz or faster.
type Engine struct {
	log       *zap.Logger
	rng       RNG
	bat       time.Duration
	states    map[string]*State
	now       func() time.Time
	onDefeat  DefeatHandler
	broadcast Broadcaster
	onResult  func(roomID string, res *AttackResult)
}

func NewEngine(bat time.Duration, rng RNG, log *zap.Logger) *Engine {
	if bat <= 0 {
		bat = time.Second
	}
	return &Engine{
		log:       log,
		rng:       rng,
		bat:       bat,
		states:    make(map[string]*State),
		now:       time.Now,
		broadcast: func(string, string) {},
	}
}

// SetNowFunc replaces the time source, for tests.
func (e *Engine) SetNowFunc(now func() time.Time) { e.now = now }

// SetDefeatHandler installs the defeat hand-off.
func (e *Engine) SetDefeatHandler(h DefeatHandler) { e.onDefeat = h }

// SetBroadcaster installs the room broadcast sink.
func (e *Engine) SetBroadcaster(b Broadcaster) { e.broadcast = b }

// SetResultHandler installs a sink for every resolved attack, used by the
// game layer to narrate outcomes.
func (e *Engine) SetResultHandler(h func(roomID string, res *AttackResult)) { e.onResult = h }

// State returns the room's combat state, nil when the room is quiet.
func (e *Engine) State(roomID string) *State {
	return e.states[roomID]
}

// StartCombat opens (or re-activates) combat in a room with an attacker
// and a target engaged at each other.
func (e *Engine) StartCombat(roomID string, attacker Entity, attackerKind string, target Entity, targetKind string) *State {
	st, ok := e.states[roomID]
	if !ok {
		st = newState(roomID)
		e.states[roomID] = st
	}
	st.Active = true
	e.addCombatant(st, attacker, attackerKind, Engaged, target.Name())
	e.addCombatant(st, target, targetKind, Engaged, attacker.Name())
	e.log.Debug("combat started", zap.String("room", roomID),
		zap.String("attacker", attacker.Name()), zap.String("target", target.Name()))
	return st
}

// JoinCombat adds a combatant to an active fight without disturbing the
// round. With a target they join Engaged, otherwise Observing.
func (e *Engine) JoinCombat(roomID string, ent Entity, kind, target string) error {
	st := e.states[roomID]
	if st == nil || !st.Active {
		return errs.NotFoundf("no fight here")
	}
	stance := Observing
	if target != "" {
		if _, ok := st.Combatants[target]; !ok {
			return errs.NotFoundf("%s is not fighting here", target)
		}
		stance = Engaged
	}
	e.addCombatant(st, ent, kind, stance, target)
	return nil
}

// LeaveCombat removes a combatant as Disengaging. Combat ends when fewer
// than two remain.
func (e *Engine) LeaveCombat(roomID, name string) {
	st := e.states[roomID]
	if st == nil {
		return
	}
	if c, ok := st.Combatants[name]; ok {
		c.AddStance(Disengaging)
	}
	e.removeCombatant(st, name)
}

// EndCombat deactivates a room's combat but keeps the record around for
// re-engagement.
func (e *Engine) EndCombat(roomID string) {
	if st := e.states[roomID]; st != nil {
		st.Active = false
	}
}

// SetTarget switches a combatant's target. Free action: the pacing timer
// is untouched and the switch applies from the next attack.
func (e *Engine) SetTarget(roomID, name, target string) error {
	st := e.states[roomID]
	if st == nil {
		return errs.NotFoundf("no fight here")
	}
	c, ok := st.Combatants[name]
	if !ok {
		return errs.NotFoundf("you are not in this fight")
	}
	if c.Target == target {
		return nil
	}
	if _, ok := st.Combatants[target]; !ok {
		return errs.NotFoundf("%s is not fighting here", target)
	}
	c.Target = target
	c.AddStance(Engaged)
	return nil
}

// UseMinor consumes the combatant's minor action slot.
func (e *Engine) UseMinor(roomID, name, action string) error {
	st := e.states[roomID]
	if st == nil {
		return errs.NotFoundf("no fight here")
	}
	acts, ok := st.Actions[name]
	if !ok {
		return errs.NotFoundf("you are not in this fight")
	}
	if acts.Minor != ActionNone {
		return errs.Rejectedf("you have already used your minor action this round")
	}
	acts.Minor = action
	return nil
}

// Attack resolves a deliberate attack, consuming the attacker's primary
// slot. A missing target still consumes the slot so the turn cannot stall.
func (e *Engine) Attack(roomID, attacker, targetName string) (*AttackResult, error) {
	st := e.states[roomID]
	if st == nil || !st.Active {
		return nil, errs.NotFoundf("no fight here")
	}
	a, ok := st.Combatants[attacker]
	if !ok {
		return nil, errs.NotFoundf("you are not in this fight")
	}
	acts := st.Actions[attacker]
	if acts.Primary != ActionNone {
		return nil, errs.Rejectedf("you have already acted this round")
	}

	target, ok := st.Combatants[targetName]
	if !ok || !target.Entity.Alive() {
		// Consume the slot anyway to prevent livelock.
		acts.Primary = ActionAttack
		e.advanceIfCurrent(st, attacker)
		return nil, errs.NotFoundf("%s is not here to fight", targetName)
	}

	a.Target = targetName
	a.AddStance(Engaged)
	acts.Primary = ActionAttack

	res := e.resolveAttack(a, target)
	e.finishAttack(st, res)
	e.advanceIfCurrent(st, attacker)
	return res, nil
}

// Tick advances every active combat by one pulse. A panic in one room is
// logged and does not disturb the others.
func (e *Engine) Tick() {
	for roomID, st := range e.states {
		if !st.Active {
			continue
		}
		e.tickRoom(roomID, st)
	}
}

func (e *Engine) tickRoom(roomID string, st *State) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("combat tick panic", zap.String("room", roomID), zap.Any("panic", r))
		}
	}()

	cur := st.Current()
	if cur == nil {
		return
	}
	acts := st.Actions[cur.Name]
	if acts == nil || acts.Primary != ActionNone {
		return
	}

	tau := e.attackInterval(cur)
	if e.now().Sub(st.TurnStartedAt[cur.Name]) < tau {
		return
	}

	targetName := cur.Target
	if cur.Kind != KindPlayer {
		// NPCs always swing: current target, else the first player by name.
		if _, ok := st.Combatants[targetName]; !ok {
			targetName = ""
			if players := st.Players(); len(players) > 0 {
				targetName = players[0]
			}
		}
	} else if targetName == "" {
		// A player with no target never auto-attacks; their timer pauses.
		return
	}

	target, ok := st.Combatants[targetName]
	if !ok || !target.Entity.Alive() {
		acts.Primary = ActionAttack
		e.advanceTurn(st)
		return
	}

	cur.Target = targetName
	acts.Primary = ActionAttack
	res := e.resolveAttack(cur, target)
	e.finishAttack(st, res)
	e.advanceTurn(st)
}

// attackInterval is BAT scaled by the weapon's speed cost.
func (e *Engine) attackInterval(c *Combatant) time.Duration {
	cost := UnarmedSpeedCost
	if w := c.Entity.Weapon(); w != nil {
		if sc := w.SpeedCost(); sc > 0 {
			cost = sc
		}
	}
	return time.Duration(float64(e.bat) * cost)
}

// finishAttack routes the result to the narration sink and runs the
// defeat hand-off.
func (e *Engine) finishAttack(st *State, res *AttackResult) {
	if e.onResult != nil {
		e.onResult(st.RoomID, res)
	}
	if !res.TargetDefeated {
		return
	}
	defeated := st.Combatants[res.Target]
	e.removeCombatant(st, res.Target)
	if e.onDefeat != nil && defeated != nil {
		e.onDefeat(st.RoomID, defeated, res.Attacker)
	}
}

// addCombatant rolls initiative and splices the combatant into the order,
// preserving whose turn it currently is.
func (e *Engine) addCombatant(st *State, ent Entity, kind string, stance Stance, target string) {
	name := ent.Name()
	if _, exists := st.Combatants[name]; exists {
		return
	}
	initiative := e.rng.Intn(20) + 1 + ent.AttributeBonus(world.AttrPhysical)
	st.Combatants[name] = &Combatant{
		Name:       name,
		Kind:       kind,
		Entity:     ent,
		Stances:    []Stance{stance},
		Target:     target,
		Initiative: initiative,
	}
	st.Actions[name] = &TurnActions{}
	st.TurnStartedAt[name] = e.now()

	currentName := ""
	if cur := st.Current(); cur != nil {
		currentName = cur.Name
	}
	st.Order = append(st.Order, OrderEntry{Name: name, Kind: kind, Initiative: initiative})
	sort.SliceStable(st.Order, func(i, j int) bool {
		if st.Order[i].Initiative != st.Order[j].Initiative {
			return st.Order[i].Initiative > st.Order[j].Initiative
		}
		return st.Order[i].Name < st.Order[j].Name
	})
	if currentName != "" {
		for i, entry := range st.Order {
			if entry.Name == currentName {
				st.TurnIndex = i
				break
			}
		}
	}
}

func (e *Engine) removeCombatant(st *State, name string) {
	if _, ok := st.Combatants[name]; !ok {
		return
	}
	idx := -1
	for i, entry := range st.Order {
		if entry.Name == name {
			idx = i
			break
		}
	}
	delete(st.Combatants, name)
	delete(st.Actions, name)
	delete(st.TurnStartedAt, name)
	if idx >= 0 {
		st.Order = append(st.Order[:idx], st.Order[idx+1:]...)
		if idx < st.TurnIndex {
			st.TurnIndex--
		}
		if st.TurnIndex >= len(st.Order) {
			st.TurnIndex = 0
		}
	}
	// Clear dangling targets.
	for _, c := range st.Combatants {
		if c.Target == name {
			c.Target = ""
		}
	}

	if len(st.Combatants) == 0 {
		delete(e.states, st.RoomID)
		return
	}
	if len(st.Combatants) < 2 {
		e.EndCombat(st.RoomID)
	}
}

// advanceIfCurrent moves the turn along when the actor who just consumed
// a primary slot is the one the round was waiting on.
func (e *Engine) advanceIfCurrent(st *State, name string) {
	if cur := st.Current(); cur != nil && cur.Name == name {
		e.advanceTurn(st)
	}
}

// advanceTurn steps the round-robin index. Wrapping past the end starts a
// new round: every action budget resets and every turn timer restamps.
func (e *Engine) advanceTurn(st *State) {
	if len(st.Order) == 0 {
		return
	}
	st.TurnIndex++
	if st.TurnIndex < len(st.Order) {
		return
	}
	st.TurnIndex = 0
	st.Round++
	now := e.now()
	for name := range st.Actions {
		st.Actions[name] = &TurnActions{}
		st.TurnStartedAt[name] = now
	}
	if e.broadcast != nil {
		e.broadcast(st.RoomID, roundSummary(st))
	}
}

// roundSummary is the line broadcast at each round boundary.
func roundSummary(st *State) string {
	parts := make([]string, 0, len(st.Order))
	for _, entry := range st.Order {
		c := st.Combatants[entry.Name]
		if c == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)",
			c.Name, healthBucket(c.Entity.Health(), c.Entity.MaxHealth())))
	}
	return fmt.Sprintf("Round %d: %s.", st.Round, strings.Join(parts, ", "))
}

func healthBucket(cur, max int) string {
	if max <= 0 {
		return "healthy"
	}
	switch pct := cur * 100 / max; {
	case pct > 75:
		return "healthy"
	case pct > 50:
		return "injured"
	case pct > 25:
		return "wounded"
	default:
		return "critical"
	}
}
