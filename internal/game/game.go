// Package game is the coordination layer: it owns the session table, runs
// the command dispatch, and wires the clock, schedules, weather, encounters,
// shops, and combat into the tick pipeline. Everything here runs on the
// game loop goroutine; the network layer only touches the channel ends.
package game

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/saltmere/server/internal/auth"
	"github.com/saltmere/server/internal/clock"
	"github.com/saltmere/server/internal/combat"
	"github.com/saltmere/server/internal/config"
	"github.com/saltmere/server/internal/core/event"
	"github.com/saltmere/server/internal/core/system"
	"github.com/saltmere/server/internal/data"
	"github.com/saltmere/server/internal/encounter"
	"github.com/saltmere/server/internal/net"
	"github.com/saltmere/server/internal/sched"
	"github.com/saltmere/server/internal/scripting"
	"github.com/saltmere/server/internal/state"
	"github.com/saltmere/server/internal/weather"
	"github.com/saltmere/server/internal/world"
)

// PlayerStore is what the game needs from player persistence. The
// Postgres repo satisfies it; MemoryPlayers backs the DB-disabled mode.
type PlayerStore interface {
	Load(ctx context.Context, name string) (*world.Player, error)
	Save(ctx context.Context, p *world.Player) error
	SaveBatch(ctx context.Context, players []*world.Player) error
}

// Game holds every live service and the session table. One instance per
// process; all fields are owned by the game loop goroutine.
type Game struct {
	cfg      *config.Config
	log      *zap.Logger
	catalog  *data.Catalog
	clock    *clock.Clock
	bus      *event.Bus
	registry *world.Registry
	store    *state.Store
	weather  *weather.Service
	enc      *encounter.Service
	schedule *sched.Resolver
	shopGate *sched.ShopGate
	combat   *combat.Engine
	scripts  *scripting.Engine
	verifier *auth.Verifier
	players  PlayerStore
	server   *net.Server
	rng      *rand.Rand
	runner   *system.Runner
	ctx      context.Context

	sessions map[uint64]*net.Session
	limiters map[uint64]*limiter
	stock    map[string]map[string]int // shop -> item -> remaining, limited lines only
}

// Deps carries everything NewGame wires together. Constructed in main.
type Deps struct {
	Config   *config.Config
	Catalog  *data.Catalog
	Clock    *clock.Clock
	Bus      *event.Bus
	Store    *state.Store
	Weather  *weather.Service
	Enc      *encounter.Service
	Schedule *sched.Resolver
	ShopGate *sched.ShopGate
	Combat   *combat.Engine
	Scripts  *scripting.Engine
	Verifier *auth.Verifier
	Players  PlayerStore
	Server   *net.Server
	RNG      *rand.Rand
	Log      *zap.Logger
}

func New(d Deps) *Game {
	g := &Game{
		cfg:      d.Config,
		log:      d.Log,
		catalog:  d.Catalog,
		clock:    d.Clock,
		bus:      d.Bus,
		registry: world.NewRegistry(),
		store:    d.Store,
		weather:  d.Weather,
		enc:      d.Enc,
		schedule: d.Schedule,
		shopGate: d.ShopGate,
		combat:   d.Combat,
		scripts:  d.Scripts,
		verifier: d.Verifier,
		players:  d.Players,
		server:   d.Server,
		rng:      d.RNG,
		runner:   system.NewRunner(),
		ctx:      context.Background(),
		sessions: make(map[uint64]*net.Session),
		limiters: make(map[uint64]*limiter),
		stock:    make(map[string]map[string]int),
	}

	g.combat.SetBroadcaster(g.broadcastRoom)
	g.combat.SetResultHandler(g.onAttackResult)
	g.combat.SetDefeatHandler(g.onDefeat)

	g.subscribeEvents()
	g.registerSystems()
	return g
}

// Registry exposes the player registry, for tests and admin tooling.
func (g *Game) Registry() *world.Registry { return g.registry }

// Tick runs one full pass of the phase pipeline.
func (g *Game) Tick(dt time.Duration) {
	g.runner.Tick(dt)
}

// Run ticks the pipeline until ctx is cancelled, then saves everyone.
func (g *Game) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.cfg.Network.TickRate)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			g.shutdown()
			return ctx.Err()
		case now := <-ticker.C:
			g.Tick(now.Sub(last))
			last = now
		}
	}
}

// shutdown saves every connected player and tells them goodbye.
func (g *Game) shutdown() {
	players := g.registry.All()
	if err := g.players.SaveBatch(g.ctx, players); err != nil {
		g.log.Error("shutdown save failed", zap.Error(err))
	}
	for _, sess := range g.sessions {
		sess.Send("The tide takes the harbor. Goodbye.")
		sess.FlushOutput()
		sess.Close()
	}
	g.log.Info("game stopped", zap.Int("players_saved", len(players)))
}

func (g *Game) registerSystems() {
	g.runner.Register(newInputSystem(g))
	g.runner.Register(newEventSystem(g))
	g.runner.Register(newSimulationSystem(g))
	g.runner.Register(newSpawnSystem(g))
	g.runner.Register(newOutputSystem(g))
	g.runner.Register(newPersistSystem(g))
	g.runner.Register(newCleanupSystem(g))
}

// subscribeEvents wires the cross-system notifications that fire on the
// bus. Handlers run during PhasePreUpdate, one tick after the emit.
func (g *Game) subscribeEvents() {
	event.Subscribe(g.bus, func(ev event.WeatherChanged) {
		msg := g.weather.ChangeMessage(ev.NewType)
		if msg == "" {
			return
		}
		for _, p := range g.registry.All() {
			room := g.catalog.Rooms.Get(p.RoomID)
			if room == nil || room.Region != ev.Region || room.Exposure == data.ExposureIndoor {
				continue
			}
			g.sendTo(p, msg)
		}
	})

	event.Subscribe(g.bus, func(ev event.EncounterSpawned) {
		names := make(map[string]int)
		for _, id := range ev.Instances {
			inst, err := g.store.Instance(g.ctx, id)
			if err != nil || inst == nil {
				continue
			}
			if tpl := g.catalog.Npcs.Get(inst.TemplateID); tpl != nil {
				names[tpl.Name]++
			}
		}
		line := "Something stirs nearby."
		for name, n := range names {
			if n > 1 {
				line = "A pack of " + name + "s closes in!"
			} else {
				line = "A " + name + " emerges!"
			}
			break
		}
		g.broadcastRoom(ev.RoomID, line)
		g.aggress(ev.RoomID)
	})

	event.Subscribe(g.bus, func(ev event.PlayerEntered) {
		for _, other := range g.registry.InRoom(ev.RoomID) {
			if other.Name != ev.PlayerName {
				g.sendTo(other, ev.PlayerName+" arrives.")
			}
		}
	})

	event.Subscribe(g.bus, func(ev event.EntityDefeated) {
		g.log.Info("entity defeated",
			zap.String("room", ev.RoomID),
			zap.String("template", ev.TemplateID),
			zap.String("player", ev.PlayerName),
			zap.String("killer", ev.KillerName))
	})
}

// dirtyPlayers lists connected players with unsaved changes.
func (g *Game) dirtyPlayers() []*world.Player {
	var out []*world.Player
	for _, p := range g.registry.All() {
		if p.Dirty {
			out = append(out, p)
		}
	}
	return out
}

// sendTo queues a line for one player's session.
func (g *Game) sendTo(p *world.Player, line string) {
	if sess, ok := g.sessions[p.SessionID]; ok {
		sess.Send(line)
	}
}

// broadcastRoom queues a line for every player in a room.
func (g *Game) broadcastRoom(roomID, line string) {
	for _, p := range g.registry.InRoom(roomID) {
		g.sendTo(p, line)
	}
}

// broadcastRoomExcept queues a line for everyone in a room but one.
func (g *Game) broadcastRoomExcept(roomID, except, line string) {
	for _, p := range g.registry.InRoom(roomID) {
		if p.Name != except {
			g.sendTo(p, line)
		}
	}
}
