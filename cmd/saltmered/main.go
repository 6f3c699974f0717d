package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/saltmere/server/internal/auth"
	"github.com/saltmere/server/internal/clock"
	"github.com/saltmere/server/internal/combat"
	"github.com/saltmere/server/internal/config"
	"github.com/saltmere/server/internal/core/event"
	"github.com/saltmere/server/internal/data"
	"github.com/saltmere/server/internal/encounter"
	"github.com/saltmere/server/internal/game"
	gonet "github.com/saltmere/server/internal/net"
	"github.com/saltmere/server/internal/persist"
	"github.com/saltmere/server/internal/sched"
	"github.com/saltmere/server/internal/scripting"
	"github.com/saltmere/server/internal/state"
	"github.com/saltmere/server/internal/weather"
)

func main() {
	if err := run(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/server.toml"
	if p := os.Getenv("SALTMERE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting",
		zap.String("server", cfg.Server.Name),
		zap.String("bind", cfg.Network.BindAddress),
		zap.Int("accel", cfg.World.Accel))

	catalog, err := data.Load(cfg.Server.DataDir, log)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	// Storage: Postgres when configured, in-memory otherwise.
	var backend state.Backend
	var players game.PlayerStore
	var tokens auth.TokenStore
	if cfg.Database.Disabled {
		log.Warn("database disabled, nothing will survive a restart")
		backend = state.NewMemoryBackend()
		players = game.NewMemoryPlayers()
		tokens = auth.NewMemoryTokens()
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.NewDB(ctx, cfg.Database, log)
		cancel()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()

		mctx, mcancel := context.WithTimeout(context.Background(), 60*time.Second)
		err = persist.RunMigrations(mctx, db.Pool)
		mcancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}

		backend = persist.NewStateBackend(db)
		players = persist.NewPlayerRepo(db)
		tokens = persist.NewTokenRepo(db)
	}

	worldClock := clock.New(cfg.World.Accel)
	bus := event.NewBus()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	store := state.NewStore(backend, cfg.World.RoomResetSeconds, log)
	weatherSvc := weather.NewService(worldClock, catalog.Weather, bus, rng, log)
	encounters := encounter.NewService(store, catalog.Zones, catalog.Npcs, bus, rng,
		cfg.Encounter.Chance, cfg.Encounter.Cooldown, log)

	resolver := sched.NewResolver(worldClock, catalog.Npcs)
	shopGate := sched.NewShopGate(worldClock, catalog.Shops)

	engine := combat.NewEngine(cfg.Combat.BaseActionTime, rng, log)

	scripts, err := scripting.NewEngine(filepath.Clean(cfg.Server.ScriptDir), log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer scripts.Close()

	verifier := auth.NewVerifier(tokens, log)

	server, err := gonet.NewServer(cfg.Network, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}

	g := game.New(game.Deps{
		Config:   cfg,
		Catalog:  catalog,
		Clock:    worldClock,
		Bus:      bus,
		Store:    store,
		Weather:  weatherSvc,
		Enc:      encounters,
		Schedule: resolver,
		ShopGate: shopGate,
		Combat:   engine,
		Scripts:  scripts,
		Verifier: verifier,
		Players:  players,
		Server:   server,
		RNG:      rng,
		Log:      log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		server.AcceptLoop()
		return nil
	})
	grp.Go(func() error {
		return g.Run(gctx)
	})
	grp.Go(func() error {
		<-gctx.Done()
		server.Shutdown()
		return nil
	})

	log.Info("ready",
		zap.String("addr", server.Addr().String()),
		zap.Duration("tick", cfg.Network.TickRate))

	return grp.Wait()
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
