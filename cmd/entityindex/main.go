package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/entityindex/internal/config"
	"github.com/l1jgo/entityindex/internal/core/event"
	"github.com/l1jgo/entityindex/internal/core/handle"
	coresys "github.com/l1jgo/entityindex/internal/core/system"
	"github.com/l1jgo/entityindex/internal/data"
	"github.com/l1jgo/entityindex/internal/scripting"
	"github.com/l1jgo/entityindex/internal/spatial"
	"github.com/l1jgo/entityindex/internal/system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner() {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m           entityindex  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      grid + zone spatial simulation       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, value any) {
	s := fmt.Sprint(value)
	dotsLen := 42 - len(label) - len(s)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), s)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Simulation ────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/entityindex.toml"
	if p := os.Getenv("ENTITYINDEX_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	switch cfg.Profile.Mode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(cfg.Profile.Path), profile.NoShutdownHook, profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath(cfg.Profile.Path), profile.NoShutdownHook, profile.Quiet).Stop()
	}

	printBanner()

	// 3. Lua behaviours
	printSection("Scripts")
	lua, err := scripting.NewEngine(cfg.Scripting.Dir, log.Named("lua"))
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer lua.Close()
	if _, err := lua.Behavior(cfg.Scripting.Behavior); err != nil {
		return fmt.Errorf("default behavior: %w", err)
	}
	printStat("Default behavior", cfg.Scripting.Behavior)

	// 4. Entity index
	printSection("World")
	ids := handle.NewPool()
	reg := spatial.NewRegistry(
		spatial.Size{W: cfg.World.Width, H: cfg.World.Height},
		ids.Generator(),
		log.Named("index"),
	)
	lua.Bind(reg)
	printStat("World size", fmt.Sprintf("%dx%d", cfg.World.Width, cfg.World.Height))
	printStat("Zone buckets", spatial.ZoneDivisions*spatial.ZoneDivisions)

	// 5. Systems (registered in phase order)
	bus := event.NewBus()
	runner := coresys.NewRunner()
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewIndexSystem(reg, bus, ids, cfg.Simulation.Verify, log))
	spawner := system.NewSpawnSystem(reg, bus,
		behaviorSource{engine: lua, fallback: cfg.Scripting.Behavior},
		cfg.Simulation.RespawnTicks, time.Now().UnixNano(), log)
	runner.Register(spawner)
	runner.Register(system.NewStatsSystem(reg, bus, cfg.Simulation.StatsEvery, log))

	// 6. Spawns
	spawns, err := data.LoadSpawnList(cfg.Simulation.SpawnFile)
	if err != nil {
		return fmt.Errorf("load spawn list: %w", err)
	}
	printStat("Spawn entries", len(spawns))
	printStat("Entities placed", spawner.SpawnAll(spawns))
	fmt.Println()

	// 7. Loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Simulation.TickRate)
	defer ticker.Stop()

	printReady(fmt.Sprintf("simulation started (tick: %s)", cfg.Simulation.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Simulation.TickRate)
			if n := cfg.Simulation.MaxSteps; n > 0 && runner.Ticks() >= uint64(n) {
				logSummary(log, reg, runner, lua)
				return nil
			}

		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			logSummary(log, reg, runner, lua)
			return nil
		}
	}
}

// behaviorSource resolves spawn-list behaviour names against the Lua engine.
// "default" maps to the configured behaviour.
type behaviorSource struct {
	engine   *scripting.Engine
	fallback string
}

func (b behaviorSource) Behavior(name string) (spatial.Behavior, error) {
	if name == "default" {
		name = b.fallback
	}
	return b.engine.Behavior(name)
}

func logSummary(log *zap.Logger, reg *spatial.Registry, runner *coresys.Runner, lua *scripting.Engine) {
	st := reg.Stats()
	log.Info("simulation stopped",
		zap.Uint64("ticks", runner.Ticks()),
		zap.Int("entities", st.Entities),
		zap.Int("occupied_cells", st.OccupiedCells),
		zap.Int("anomalies", st.Anomalies),
		zap.Int("lua_errors", lua.Errors()))
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
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
