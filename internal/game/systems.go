package game

import (
	"time"

	"go.uber.org/zap"

	"github.com/saltmere/server/internal/core/system"
	"github.com/saltmere/server/internal/state"
)

// eventSystem swaps the bus buffers and delivers last tick's events.
// Phase 1 (PreUpdate).
type eventSystem struct {
	g *Game
}

func newEventSystem(g *Game) *eventSystem { return &eventSystem{g: g} }

func (s *eventSystem) Phase() system.Phase { return system.PhasePreUpdate }

func (s *eventSystem) Update(_ time.Duration) {
	s.g.bus.SwapBuffers()
	s.g.bus.DispatchAll()
}

// simulationSystem runs the per-tick game logic: combat pacing and
// weather for every region a player currently occupies. Phase 2 (Update).
type simulationSystem struct {
	g *Game
}

func newSimulationSystem(g *Game) *simulationSystem { return &simulationSystem{g: g} }

func (s *simulationSystem) Phase() system.Phase { return system.PhaseUpdate }

func (s *simulationSystem) Update(_ time.Duration) {
	g := s.g

	regions := make(map[string]bool)
	for _, p := range g.registry.All() {
		if room := g.catalog.Rooms.Get(p.RoomID); room != nil {
			regions[room.Region] = true
		}
	}
	for region := range regions {
		g.weather.MaybeUpdate(region)
	}

	g.combat.Tick()
}

// spawnSystem restocks room ground items on the respawn interval, one
// eligibility check per occupied room per listed item. Phase 3
// (PostUpdate).
type spawnSystem struct {
	g *Game
}

func newSpawnSystem(g *Game) *spawnSystem { return &spawnSystem{g: g} }

func (s *spawnSystem) Phase() system.Phase { return system.PhasePostUpdate }

func (s *spawnSystem) Update(_ time.Duration) {
	g := s.g
	seen := make(map[string]bool)
	for _, p := range g.registry.All() {
		if seen[p.RoomID] {
			continue
		}
		seen[p.RoomID] = true
		g.restockRoom(p.RoomID)
	}
}

// restockRoom re-places a room's listed ground items when their spawn
// point is eligible: nothing alive from it and the cooldown elapsed.
func (g *Game) restockRoom(roomID string) {
	room := g.catalog.Rooms.Get(roomID)
	if room == nil || len(room.Items) == 0 {
		return
	}
	for _, itemID := range room.Items {
		tpl := g.catalog.Items.Get(itemID)
		if tpl == nil {
			continue
		}
		spawnID := "item:" + itemID
		ok, err := g.store.TryConsumeSpawnEligibility(
			g.ctx, roomID, spawnID, 1, g.cfg.Encounter.RespawnInterval)
		if err != nil {
			g.log.Warn("spawn eligibility failed",
				zap.String("room", roomID), zap.String("spawn", spawnID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		inst := state.Instance{
			TemplateID:   itemID,
			Type:         state.TypeItem,
			Quantity:     1,
			Durability:   tpl.Durability,
			SpawnGroupID: spawnID,
		}
		id, err := g.store.CreateInstance(g.ctx, inst)
		if err != nil {
			g.log.Warn("item spawn failed", zap.String("item", itemID), zap.Error(err))
			continue
		}
		if err := g.store.PlaceEntity(g.ctx, id, roomID); err != nil {
			g.log.Warn("item place failed", zap.String("item", itemID), zap.Error(err))
		}
	}
}

// outputSystem flushes every session's buffered lines to its writer
// goroutine. Phase 4 (Output).
type outputSystem struct {
	g *Game
}

func newOutputSystem(g *Game) *outputSystem { return &outputSystem{g: g} }

func (s *outputSystem) Phase() system.Phase { return system.PhaseOutput }

func (s *outputSystem) Update(_ time.Duration) {
	for _, sess := range s.g.sessions {
		sess.FlushOutput()
	}
}

// persistFlushInterval spaces out batch saves of dirty players.
const persistFlushInterval = 10 * time.Second

// persistSystem batch-saves dirty players on an interval. Phase 5
// (Persist).
type persistSystem struct {
	g         *Game
	lastFlush time.Time
}

func newPersistSystem(g *Game) *persistSystem {
	return &persistSystem{g: g, lastFlush: time.Now()}
}

func (s *persistSystem) Phase() system.Phase { return system.PhasePersist }

func (s *persistSystem) Update(_ time.Duration) {
	if time.Since(s.lastFlush) < persistFlushInterval {
		return
	}
	s.lastFlush = time.Now()

	g := s.g
	batch := g.dirtyPlayers()
	if len(batch) == 0 {
		return
	}
	if err := g.players.SaveBatch(g.ctx, batch); err != nil {
		g.log.Error("player batch save failed", zap.Int("count", len(batch)), zap.Error(err))
		return
	}
	for _, p := range batch {
		p.Dirty = false
	}
	g.log.Debug("players flushed", zap.Int("count", len(batch)))
}

// cleanupSystem reaps sessions that died without a dead-channel slot, so
// a burst of disconnects cannot leak table entries, and releases schedule
// deferrals whose fights are over. Phase 6 (Cleanup).
type cleanupSystem struct {
	g *Game
}

func newCleanupSystem(g *Game) *cleanupSystem { return &cleanupSystem{g: g} }

func (s *cleanupSystem) Phase() system.Phase { return system.PhaseCleanup }

func (s *cleanupSystem) Update(_ time.Duration) {
	for _, sess := range s.g.sessions {
		if sess.IsClosed() {
			s.g.handleDisconnect(sess)
		}
	}
	for _, id := range s.g.schedule.Deferred() {
		if !s.g.npcBusy(id) {
			s.g.schedule.ClearDeferral(id)
		}
	}
}
