package game

import (
	"math/rand"
	stdnet "net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saltmere/server/internal/auth"
	"github.com/saltmere/server/internal/clock"
	"github.com/saltmere/server/internal/combat"
	"github.com/saltmere/server/internal/config"
	"github.com/saltmere/server/internal/core/event"
	"github.com/saltmere/server/internal/data"
	"github.com/saltmere/server/internal/encounter"
	"github.com/saltmere/server/internal/net"
	"github.com/saltmere/server/internal/sched"
	"github.com/saltmere/server/internal/scripting"
	"github.com/saltmere/server/internal/state"
	"github.com/saltmere/server/internal/weather"
	"github.com/saltmere/server/internal/world"
)

// scripted feeds queued dice to the combat engine and falls back to a
// seeded source once the queue runs dry.
type scripted struct {
	ints     []int
	fallback *rand.Rand
}

func (s *scripted) Intn(n int) int {
	if len(s.ints) == 0 {
		return s.fallback.Intn(n)
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

func (s *scripted) Float64() float64 { return 1.0 }

func testCatalog() *data.Catalog {
	rooms := data.NewRoomTable(
		&data.Room{ID: world.StartRoom, Name: "The Black Anchor, Common Room",
			Description: "Low beams and tar smoke.", Region: "town", Exposure: data.ExposureIndoor,
			Exits: map[string]string{"out": "quayside"}, Npcs: []string{"maren_tydd"}},
		&data.Room{ID: "quayside", Name: "The Quayside",
			Description: "Stone quays stained green.", Region: "town", Exposure: data.ExposureCoastal,
			Zone: "quays", Items: []string{"driftwood"},
			Exits: map[string]string{"in": world.StartRoom, "south": "chandlery"}},
		&data.Room{ID: "chandlery", Name: "Hale's Chandlery",
			Description: "Rope and pitch.", Region: "town", Exposure: data.ExposureIndoor,
			ShopID: "chandlery",
			Exits:  map[string]string{"north": "quayside"}},
	)
	items := data.NewItemTable(
		&data.ItemTemplate{ID: "rusty_cutlass", Name: "Rusty Cutlass", Type: "weapon",
			Value: 40, Category: "Melee", DamageMin: 2, DamageMax: 6, DamageType: "slashing",
			CritChance: 0.05, SpeedCost: 1.2, Durability: 30},
		&data.ItemTemplate{ID: "padded_jack", Name: "Padded Jack", Type: "armor",
			Value: 35, ArmorType: "light", ArmorSlots: []string{"chest"}, ArmorHP: 25,
			DamageReduction: map[string]int{"slashing": 2, "bludgeoning": 1}},
		&data.ItemTemplate{ID: "driftwood", Name: "Driftwood Branch", Type: "misc", Value: 1},
		&data.ItemTemplate{ID: "rat_tail", Name: "Rat Tail", Type: "misc", Value: 2},
	)
	npcs := data.NewNpcTable(
		&data.NpcTemplate{ID: "maren_tydd", Name: "Maren Tydd",
			Description: "The keeper of the Black Anchor.", Level: 6, MaxHealth: 80,
			Keywords: map[string]string{"rooms": "Two gold a night."}},
		&data.NpcTemplate{ID: "josper_hale", Name: "Josper Hale",
			Description: "A small, precise man.", Level: 4, MaxHealth: 50,
			IsMerchant: true, ShopID: "chandlery",
			Schedule: []data.ScheduleBlock{{Start: "08:00", End: "18:00", RoomID: "chandlery"}}},
		&data.NpcTemplate{ID: "harbor_rat", Name: "Harbor Rat",
			Description: "A rat the size of a terrier.", Level: 1, MaxHealth: 12, Hostile: true,
			Attributes: map[string]int{"physical": 8},
			Skills:     map[string]int{"fighting": 25, "dodging": 5},
			ExpValue:   15,
			LootTable:  []data.LootEntry{{Item: "rat_tail", Chance: 100}}},
	)
	shops := data.NewShopTable(
		&data.Shop{ID: "chandlery", Name: "Hale's Chandlery", Keeper: "josper_hale",
			Open: "08:00", Close: "18:00", BuybackRate: 0.5,
			Inventory: []data.ShopItem{
				{Item: "rusty_cutlass", Price: 45, Stock: 2},
				{Item: "padded_jack"},
			}},
	)
	zones := data.NewZoneTable(
		map[string][]data.EncounterRow{
			"quays": {{MinRoll: 1, MaxRoll: 100, Type: data.EncounterCombat, Composition: "rat_pack"}},
		},
		map[string][]data.CompositionEntry{
			"rat_pack": {{Template: "harbor_rat", MinCount: 1, MaxCount: 1}},
		},
	)
	return &data.Catalog{
		Rooms: rooms, Npcs: npcs, Items: items, Shops: shops, Zones: zones,
		Weather: data.DefaultWeatherTable(),
	}
}

type harness struct {
	g     *Game
	dice  *scripted
	clock *clock.Clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		Server:    config.ServerConfig{Name: "Saltmere", Admins: []string{"harbormaster"}},
		Network:   config.NetworkConfig{BindAddress: "127.0.0.1:0", TickRate: 100 * time.Millisecond, MaxSessions: 8, InQueueSize: 16, OutQueueSize: 256, CommandsPerSecond: 100, AuthTimeout: time.Second, IdleTimeout: time.Second, WriteTimeout: time.Second},
		World:     config.WorldConfig{Accel: 3, RoomResetSeconds: time.Hour},
		Combat:    config.CombatConfig{BaseActionTime: time.Second},
		Encounter: config.EncounterConfig{Chance: 0, Cooldown: time.Minute, RespawnInterval: time.Minute},
	}
	log := zap.NewNop()
	catalog := testCatalog()
	rng := rand.New(rand.NewSource(7))
	dice := &scripted{fallback: rand.New(rand.NewSource(11))}

	worldClock := clock.New(cfg.World.Accel)
	require.NoError(t, worldClock.SetWorldSeconds(10*3600)) // 10:00, day 0

	bus := event.NewBus()
	store := state.NewStore(state.NewMemoryBackend(), cfg.World.RoomResetSeconds, log)
	weatherSvc := weather.NewService(worldClock, catalog.Weather, bus, rng, log)
	enc := encounter.NewService(store, catalog.Zones, catalog.Npcs, bus, rng,
		cfg.Encounter.Chance, cfg.Encounter.Cooldown, log)

	resolver := sched.NewResolver(worldClock, catalog.Npcs)

	scripts, err := scripting.NewEngine(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(scripts.Close)

	server, err := net.NewServer(cfg.Network, log)
	require.NoError(t, err)
	t.Cleanup(server.Shutdown)

	g := New(Deps{
		Config:   cfg,
		Catalog:  catalog,
		Clock:    worldClock,
		Bus:      bus,
		Store:    store,
		Weather:  weatherSvc,
		Enc:      enc,
		Schedule: resolver,
		ShopGate: sched.NewShopGate(worldClock, catalog.Shops),
		Combat:   combat.NewEngine(cfg.Combat.BaseActionTime, dice, log),
		Scripts:  scripts,
		Verifier: auth.NewVerifier(auth.NewMemoryTokens(), log),
		Players:  NewMemoryPlayers(),
		Server:   server,
		RNG:      rng,
		Log:      log,
	})
	return &harness{g: g, dice: dice, clock: worldClock}
}

// connect fabricates an authenticated session and returns its player.
func (h *harness) connect(t *testing.T, name string) (*net.Session, *world.Player) {
	t.Helper()
	sess := h.session(t)
	h.g.handleAuth(sess, `{"type":"auth","name":"`+name+`","token":"gull"}`)
	p := h.g.registry.ByName(world.NormalizeName(name))
	require.NotNil(t, p, "auth should admit %s", name)
	h.drain(sess)
	return sess, p
}

func (h *harness) session(t *testing.T) *net.Session {
	t.Helper()
	server, client := stdnet.Pipe()
	t.Cleanup(func() { client.Close() })
	sess := net.NewSession(server, uint64(len(h.g.sessions)+1), 16, 256,
		time.Second, time.Second, time.Second, zap.NewNop())
	h.g.sessions[sess.ID] = sess
	h.g.limiters[sess.ID] = newLimiter(100)
	return sess
}

// drain flushes and collects every line queued for the session.
func (h *harness) drain(sess *net.Session) []string {
	sess.FlushOutput()
	var out []string
	for {
		select {
		case line := <-sess.OutQueue:
			out = append(out, line)
		default:
			return out
		}
	}
}

func joined(lines []string) string { return strings.Join(lines, "\n") }

func TestAuthCreatesAndRestoresPlayer(t *testing.T) {
	h := newHarness(t)
	sess, p := h.connect(t, "Ada")

	assert.Equal(t, world.StartRoom, p.RoomID)
	assert.Equal(t, 120, p.Gold)
	assert.Equal(t, net.StatePlaying, sess.State())

	p.Gold = 77
	h.g.handleDisconnect(sess)
	assert.Nil(t, h.g.registry.ByName("ada"))

	_, again := h.connect(t, "Ada")
	assert.Equal(t, 77, again.Gold, "gold should survive the round trip")
}

func TestAuthRejectsWrongToken(t *testing.T) {
	h := newHarness(t)
	sess, _ := h.connect(t, "Ada")
	h.g.handleDisconnect(sess)

	bad := h.session(t)
	h.g.handleAuth(bad, `{"type":"auth","name":"Ada","token":"wrong"}`)
	assert.Nil(t, h.g.registry.ByName("ada"))
	assert.True(t, bad.IsClosed())
}

func TestDuplicateNameRejected(t *testing.T) {
	h := newHarness(t)
	h.connect(t, "Ada")

	dup := h.session(t)
	h.g.handleAuth(dup, `{"type":"auth","name":"ADA","token":"gull"}`)
	assert.True(t, dup.IsClosed(), "second session for the same name must be refused")
}

func TestCommandRateLimit(t *testing.T) {
	h := newHarness(t)
	sess, _ := h.connect(t, "Ada")
	h.g.limiters[sess.ID] = newLimiter(2)

	for i := 0; i < 5; i++ {
		h.g.handleCommand(sess, "time")
	}
	out := joined(h.drain(sess))
	assert.Contains(t, out, "too fast")
}

func TestMoveBetweenRooms(t *testing.T) {
	h := newHarness(t)
	sess, p := h.connect(t, "Ada")

	h.g.handleCommand(sess, "go out")
	assert.Equal(t, "quayside", p.RoomID)
	out := joined(h.drain(sess))
	assert.Contains(t, out, "The Quayside")

	h.g.handleCommand(sess, "north")
	out = joined(h.drain(sess))
	assert.Contains(t, out, "cannot go north")
	assert.Equal(t, "quayside", p.RoomID)
}

func TestLookShowsRoomAndNpc(t *testing.T) {
	h := newHarness(t)
	sess, _ := h.connect(t, "Ada")

	h.g.handleCommand(sess, "look")
	out := joined(h.drain(sess))
	assert.Contains(t, out, "The Black Anchor, Common Room")
	assert.Contains(t, out, "Exits: out")
	assert.Contains(t, out, "Maren Tydd is here.")

	h.g.handleCommand(sess, "look maren")
	out = joined(h.drain(sess))
	assert.Contains(t, out, "keeper of the Black Anchor")
}

func TestTalkKeywordFallback(t *testing.T) {
	h := newHarness(t)
	sess, _ := h.connect(t, "Ada")

	h.g.handleCommand(sess, "talk maren")
	out := joined(h.drain(sess))
	assert.Contains(t, out, "could speak of: rooms")

	h.g.handleCommand(sess, "talk maren ROOMS")
	out = joined(h.drain(sess))
	assert.Contains(t, out, "Two gold a night.")

	h.g.handleCommand(sess, "talk maren kraken")
	out = joined(h.drain(sess))
	assert.Contains(t, out, "nothing of that")
}

func TestShopHoursAndKeeper(t *testing.T) {
	h := newHarness(t)
	sess, p := h.connect(t, "Ada")
	h.g.handleCommand(sess, "go out")
	h.g.handleCommand(sess, "go south")
	require.Equal(t, "chandlery", p.RoomID)
	h.drain(sess)

	// 10:00, keeper scheduled on the floor: open for business.
	h.g.handleCommand(sess, "list")
	out := joined(h.drain(sess))
	assert.Contains(t, out, "Rusty Cutlass")
	assert.Contains(t, out, "45 gold (2 left)")

	// 23:00 is past closing.
	require.NoError(t, h.clock.SetWorldSeconds(23*3600))
	h.g.handleCommand(sess, "buy cutlass")
	out = joined(h.drain(sess))
	assert.Contains(t, strings.ToLower(out), "closed")
	assert.Equal(t, 120, p.Gold)
}

func TestClosedShopBlocksEntry(t *testing.T) {
	h := newHarness(t)
	sess, p := h.connect(t, "Ada")
	h.g.handleCommand(sess, "go out")
	h.drain(sess)

	// 23:00 is past closing: the door stays shut.
	require.NoError(t, h.clock.SetWorldSeconds(23*3600))
	h.g.handleCommand(sess, "go south")
	out := joined(h.drain(sess))
	assert.Contains(t, out, "Closed (opens at 08:00)")
	assert.Equal(t, "quayside", p.RoomID)

	require.NoError(t, h.clock.SetWorldSeconds(10*3600))
	h.g.handleCommand(sess, "go south")
	h.drain(sess)
	assert.Equal(t, "chandlery", p.RoomID)
}

func TestBuySellRoundTrip(t *testing.T) {
	h := newHarness(t)
	sess, p := h.connect(t, "Ada")
	h.g.handleCommand(sess, "go out")
	h.g.handleCommand(sess, "go south")
	h.drain(sess)

	h.g.handleCommand(sess, "buy cutlass")
	out := joined(h.drain(sess))
	assert.Contains(t, out, "You buy a rusty cutlass for 45 gold.")
	assert.Equal(t, 75, p.Gold)
	require.Len(t, p.Inventory, 1)

	// Limited stock runs out.
	h.g.handleCommand(sess, "buy cutlass")
	h.drain(sess)
	h.g.handleCommand(sess, "buy cutlass")
	out = joined(h.drain(sess))
	assert.Contains(t, out, "sold out")

	// Buyback pays half the template value, not the shop price.
	h.g.handleCommand(sess, "sell cutlass")
	out = joined(h.drain(sess))
	assert.Contains(t, out, "You sell the rusty cutlass for 20 gold.")
}

func TestBuyRequiresGold(t *testing.T) {
	h := newHarness(t)
	sess, p := h.connect(t, "Ada")
	h.g.handleCommand(sess, "go out")
	h.g.handleCommand(sess, "go south")
	h.drain(sess)

	p.Gold = 10
	h.g.handleCommand(sess, "buy cutlass")
	out := joined(h.drain(sess))
	assert.Contains(t, out, "cannot afford")
	assert.Equal(t, 10, p.Gold)
	assert.Empty(t, p.Inventory)
}

func TestRepairRestoresDurability(t *testing.T) {
	h := newHarness(t)
	sess, p := h.connect(t, "Ada")
	h.g.handleCommand(sess, "go out")
	h.g.handleCommand(sess, "go south")
	h.drain(sess)

	tpl := h.g.catalog.Items.Get("rusty_cutlass")
	owned := world.NewOwnedItem(tpl)
	owned.Durability = 5
	p.Inventory = append(p.Inventory, owned)

	h.g.handleCommand(sess, "repair cutlass")
	out := joined(h.drain(sess))
	assert.Contains(t, out, "mends the rusty cutlass for 10 gold.")
	assert.Equal(t, 110, p.Gold)
	assert.Equal(t, tpl.Durability, owned.Durability)

	h.g.handleCommand(sess, "repair cutlass")
	out = joined(h.drain(sess))
	assert.Contains(t, out, "needs no work")
}

func TestJoinExistingFight(t *testing.T) {
	h := newHarness(t)
	sessA, _ := h.connect(t, "Ada")
	sessB, pb := h.connect(t, "Brac")
	h.g.handleCommand(sessA, "go out")
	h.g.handleCommand(sessB, "go out")
	h.drain(sessA)
	h.drain(sessB)

	h.spawnRat(t, "quayside")
	h.g.handleCommand(sessA, "attack rat")
	h.drain(sessA)

	h.g.handleCommand(sessB, "join combat rat")
	out := joined(h.drain(sessB))
	assert.Contains(t, out, "You wade into the fight.")

	st := h.g.combat.State("quayside")
	require.NotNil(t, st)
	assert.NotNil(t, st.Combatants[pb.Name])
	assert.Equal(t, "Harbor Rat", st.Combatants[pb.Name].Target)
}

func TestEquipUnequip(t *testing.T) {
	h := newHarness(t)
	sess, p := h.connect(t, "Ada")

	tpl := h.g.catalog.Items.Get("padded_jack")
	p.Inventory = append(p.Inventory, world.NewOwnedItem(tpl))

	h.g.handleCommand(sess, "equip jack")
	out := joined(h.drain(sess))
	assert.Contains(t, out, "You ready the padded jack (chest).")
	assert.NotNil(t, p.Equipped[world.SlotChest])
	assert.Empty(t, p.Inventory)

	h.g.handleCommand(sess, "unequip chest")
	h.drain(sess)
	assert.Nil(t, p.Equipped[world.SlotChest])
	assert.Len(t, p.Inventory, 1)
}

func TestGetAndDrop(t *testing.T) {
	h := newHarness(t)
	sess, p := h.connect(t, "Ada")
	h.g.handleCommand(sess, "go out")
	h.drain(sess)

	id, err := h.g.store.CreateInstance(h.g.ctx, state.Instance{TemplateID: "driftwood", Type: state.TypeItem, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, h.g.store.PlaceEntity(h.g.ctx, id, "quayside"))

	h.g.handleCommand(sess, "get driftwood")
	out := joined(h.drain(sess))
	assert.Contains(t, out, "You pick up the driftwood branch.")
	require.Len(t, p.Inventory, 1)

	h.g.handleCommand(sess, "drop driftwood")
	h.drain(sess)
	assert.Empty(t, p.Inventory)
	ents, err := h.g.store.EntitiesInRoom(h.g.ctx, "quayside")
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "driftwood", ents[0].TemplateID)
}

// spawnRat places one live harbor rat creature in a room.
func (h *harness) spawnRat(t *testing.T, roomID string) string {
	t.Helper()
	id, err := h.g.store.CreateInstance(h.g.ctx, state.Instance{
		TemplateID: "harbor_rat", Type: state.TypeCreature,
		HPCurrent: 12, HPMax: 12,
	})
	require.NoError(t, err)
	require.NoError(t, h.g.store.PlaceEntity(h.g.ctx, id, roomID))
	return id
}

func TestAttackDefeatLootAndExp(t *testing.T) {
	h := newHarness(t)
	sess, p := h.connect(t, "Ada")
	h.g.handleCommand(sess, "go out")
	h.drain(sess)

	ratID := h.spawnRat(t, "quayside")

	// Make the kill arithmetic exact: one unarmed hit for 6.
	p.Skills["fighting"] = 80
	p.Attributes["physical"] = 16
	inst, err := h.g.store.Instance(h.g.ctx, ratID)
	require.NoError(t, err)
	inst.HPCurrent = 6
	require.NoError(t, h.g.store.UpdateInstance(h.g.ctx, inst))

	// Initiative for both sides, then accuracy 11 and dodge 100.
	h.dice.ints = []int{5, 5, 10, 99}

	h.g.handleCommand(sess, "attack rat")
	require.NotNil(t, h.g.combat.State("quayside"))
	h.drain(sess)

	_, err = h.g.combat.Attack("quayside", p.Name, "Harbor Rat")
	require.NoError(t, err)
	out := joined(h.drain(sess))

	assert.Contains(t, out, "hits Harbor Rat")
	assert.Contains(t, out, "The harbor rat is slain!")
	assert.Contains(t, out, "You gain")
	assert.Greater(t, p.Experience, 0)

	// The corpse is gone; the loot roll (chance 100) left a rat tail.
	gone, err := h.g.store.Instance(h.g.ctx, ratID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	ents, err := h.g.store.EntitiesInRoom(h.g.ctx, "quayside")
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "rat_tail", ents[0].TemplateID)
}

func TestExpAwardScalesFloorByTier(t *testing.T) {
	assert.Equal(t, 31, expAward(&data.NpcTemplate{Tier: data.TierLow, MaxHealth: 12}))
	assert.Equal(t, 35, expAward(&data.NpcTemplate{Tier: data.TierMid, MaxHealth: 10}))
	assert.Equal(t, 125, expAward(&data.NpcTemplate{Tier: data.TierEpic, MaxHealth: 40}))

	// A generous template value beats the floor.
	assert.Equal(t, 90, expAward(&data.NpcTemplate{Tier: data.TierLow, MaxHealth: 12, ExpValue: 90}))
}

func TestSlainKeeperStaysDownUntilRespawn(t *testing.T) {
	h := newHarness(t)
	sess, _ := h.connect(t, "Ada")
	h.drain(sess)

	tpl := h.g.catalog.Npcs.Get("maren_tydd")
	h.g.defeatNpc(world.StartRoom, "Maren Tydd", h.g.scheduledNpcEntity("Maren Tydd", tpl), "Ada")
	h.drain(sess)

	h.g.handleCommand(sess, "look")
	out := joined(h.drain(sess))
	assert.NotContains(t, out, "Maren Tydd is here.")

	// Past the respawn window the keeper is back behind the bar.
	h.g.store.SetNowFunc(func() int64 { return time.Now().Unix() + 120 })
	h.g.handleCommand(sess, "look")
	out = joined(h.drain(sess))
	assert.Contains(t, out, "Maren Tydd is here.")
}

func TestPlayerDefeatRespawnsAtStart(t *testing.T) {
	h := newHarness(t)
	sess, p := h.connect(t, "Ada")
	h.g.handleCommand(sess, "go out")
	h.drain(sess)

	h.spawnRat(t, "quayside")
	p.Health = 1

	h.dice.ints = []int{5, 5}
	h.g.handleCommand(sess, "attack rat")
	h.drain(sess)

	// Rat swings: accuracy 11 against fighting 29, dodge 50 against a
	// fresh player's dodging 4. One hit lands for 1 + physical bonus.
	h.dice.ints = []int{10, 49}
	_, err := h.g.combat.Attack("quayside", "Harbor Rat", p.Name)
	require.NoError(t, err)

	assert.Equal(t, world.StartRoom, p.RoomID)
	assert.Equal(t, p.MaxHealth/2, p.Health)
	out := joined(h.drain(sess))
	assert.Contains(t, out, "You wake at the Black Anchor.")
}

func TestFleeLeavesCombat(t *testing.T) {
	h := newHarness(t)
	sess, p := h.connect(t, "Ada")
	h.g.handleCommand(sess, "go out")
	h.drain(sess)

	h.spawnRat(t, "quayside")
	h.g.handleCommand(sess, "attack rat")
	h.drain(sess)
	require.NotNil(t, h.g.combat.State("quayside").Combatants[p.Name])

	// Dodging 97 + attribute bonuses gives effective 100: no roll fails.
	p.Skills["dodging"] = 97
	h.g.handleCommand(sess, "flee")
	out := joined(h.drain(sess))

	st := h.g.combat.State("quayside")
	if st != nil {
		assert.Nil(t, st.Combatants[p.Name])
	}
	assert.Contains(t, out, "You slip out of the fight.")
}

func TestMoveBlockedWhileFighting(t *testing.T) {
	h := newHarness(t)
	sess, p := h.connect(t, "Ada")
	h.g.handleCommand(sess, "go out")
	h.drain(sess)

	h.spawnRat(t, "quayside")
	h.g.handleCommand(sess, "attack rat")
	h.drain(sess)

	h.g.handleCommand(sess, "go in")
	out := joined(h.drain(sess))
	assert.Contains(t, out, "flee first")
	assert.Equal(t, "quayside", p.RoomID)
}

func TestHostileCreatureAggressesOnEntry(t *testing.T) {
	h := newHarness(t)
	h.spawnRat(t, "quayside")

	sess, p := h.connect(t, "Ada")
	h.g.handleCommand(sess, "go out")
	out := joined(h.drain(sess))

	st := h.g.combat.State("quayside")
	require.NotNil(t, st)
	assert.True(t, st.Active)
	assert.NotNil(t, st.Combatants[p.Name])
	assert.NotNil(t, st.Combatants["Harbor Rat"])
	assert.Contains(t, out, "lunges at Ada")
}

func TestSpawnSystemRestocksGroundItems(t *testing.T) {
	h := newHarness(t)
	sess, _ := h.connect(t, "Ada")
	h.g.handleCommand(sess, "go out")
	h.drain(sess)

	sys := newSpawnSystem(h.g)
	sys.Update(0)

	ents, err := h.g.store.EntitiesInRoom(h.g.ctx, "quayside")
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "driftwood", ents[0].TemplateID)

	// A second pass inside the cooldown must not duplicate the item.
	sys.Update(0)
	ents, err = h.g.store.EntitiesInRoom(h.g.ctx, "quayside")
	require.NoError(t, err)
	assert.Len(t, ents, 1)
}

func TestScheduledMerchantPresence(t *testing.T) {
	h := newHarness(t)

	// 10:00: behind the counter.
	present := h.g.presentNPCs("chandlery")
	assert.Contains(t, present, "josper_hale")

	// 20:00: gone home.
	require.NoError(t, h.clock.SetWorldSeconds(20*3600))
	present = h.g.presentNPCs("chandlery")
	assert.NotContains(t, present, "josper_hale")
}

func TestDeferralClearsWhenFightEnds(t *testing.T) {
	h := newHarness(t)
	sess, _ := h.connect(t, "Ada")
	h.g.handleCommand(sess, "go out")
	h.g.handleCommand(sess, "go south")
	h.drain(sess)

	h.g.handleCommand(sess, "attack josper")
	h.drain(sess)

	// Looking around while the keeper fights pins him in place.
	h.g.presentNPCs("chandlery")
	require.True(t, h.g.schedule.IsDeferred("josper_hale"))

	sys := newCleanupSystem(h.g)
	sys.Update(0)
	assert.True(t, h.g.schedule.IsDeferred("josper_hale"), "deferral holds while the fight runs")

	h.g.combat.LeaveCombat("chandlery", "Josper Hale")
	sys.Update(0)
	assert.False(t, h.g.schedule.IsDeferred("josper_hale"))
	assert.Contains(t, h.g.presentNPCs("chandlery"), "josper_hale")
}

func TestSaltRainScalesGearWear(t *testing.T) {
	h := newHarness(t)
	sess, p := h.connect(t, "Ada")
	h.g.handleCommand(sess, "go out")
	h.drain(sess)

	st := h.g.weather.Region("town")
	st.Type = data.WeatherSaltRain
	st.Intensity = 3

	// Quayside is coastal: full salt rain doubles wear.
	pe := h.g.playerEntity(p)
	assert.Equal(t, 2.0, pe.wearScale())
	assert.Equal(t, 2, scaleWear(1, pe.wearScale()))
	assert.Equal(t, 1, scaleWear(1, 1.0))

	// Indoors the weather never touches gear.
	h.g.handleCommand(sess, "go in")
	h.drain(sess)
	assert.Equal(t, 1.0, pe.wearScale())
}

func TestAuthReplyIsJSONFrame(t *testing.T) {
	h := newHarness(t)
	sess := h.session(t)
	h.g.handleAuth(sess, `{"type":"auth","name":"Ada","token":"gull"}`)
	out := h.drain(sess)
	require.NotEmpty(t, out)
	assert.Equal(t, `{"type":"auth_success","name":"Ada","new_user":true}`, out[0])

	h.g.handleDisconnect(sess)
	again := h.session(t)
	h.g.handleAuth(again, `{"type":"auth","name":"Ada","token":"gull"}`)
	out = h.drain(again)
	require.NotEmpty(t, out)
	assert.Equal(t, `{"type":"auth_success","name":"Ada","new_user":false}`, out[0])
}

func TestPlayerEnteredNotifiesRoom(t *testing.T) {
	h := newHarness(t)
	sessA, _ := h.connect(t, "Ada")
	h.drain(sessA)

	h.connect(t, "Brac")
	h.g.Tick(100 * time.Millisecond) // deliver the PlayerEntered event

	out := joined(h.drain(sessA))
	assert.Contains(t, out, "Brac arrives.")
}

func TestAttackAnotherPlayerRefused(t *testing.T) {
	h := newHarness(t)
	sessA, _ := h.connect(t, "Ada")
	h.connect(t, "Brac")
	h.drain(sessA)

	h.g.handleCommand(sessA, "attack brac")
	out := joined(h.drain(sessA))
	assert.Contains(t, out, "harbor watch")
	assert.Nil(t, h.g.combat.State(world.StartRoom))
}

func TestAdminSetTime(t *testing.T) {
	h := newHarness(t)
	sessA, _ := h.connect(t, "Ada")
	h.g.handleCommand(sessA, "settime 06:30")
	out := joined(h.drain(sessA))
	assert.Contains(t, out, "do not have that authority")

	sessH, _ := h.connect(t, "Harbormaster")
	h.g.handleCommand(sessH, "settime 06:30")
	h.drain(sessH)
	assert.Equal(t, 6, h.clock.Hour())
	assert.Equal(t, 30, h.clock.Minute())
}

func TestPersistSystemFlushesDirtyPlayers(t *testing.T) {
	h := newHarness(t)
	_, p := h.connect(t, "Ada")
	p.Gold = 99
	p.Dirty = true

	sys := newPersistSystem(h.g)
	sys.lastFlush = time.Now().Add(-time.Minute)
	sys.Update(0)

	assert.False(t, p.Dirty)
	saved, err := h.g.players.Load(h.g.ctx, "Ada")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 99, saved.Gold)
}
