package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/prismgrid/prismgrid/internal/config"
	coresys "github.com/prismgrid/prismgrid/internal/core/system"
	"github.com/prismgrid/prismgrid/internal/data"
	"github.com/prismgrid/prismgrid/internal/persist"
	"github.com/prismgrid/prismgrid/internal/scripting"
	"github.com/prismgrid/prismgrid/internal/system"
	"github.com/prismgrid/prismgrid/internal/world"
)

const defaultConfigPath = "config/prismgrid.toml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "prismgrid",
		Usage: "turn-based beam puzzle on a grid",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML config file",
				Value:   defaultConfigPath,
				Sources: cli.EnvVars("PRISMGRID_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "level",
				Aliases: []string{"l"},
				Usage:   "level YAML file, overrides level.path",
			},
			&cli.StringFlag{
				Name:  "scripts",
				Usage: "Lua scripts directory, overrides level.scripts_dir",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "write logs here instead of stderr",
				Value: "prismgrid.log",
			},
		},
		Action: play,
		Commands: []*cli.Command{
			{
				Name:   "check",
				Usage:  "validate the level and its scripts without playing",
				Action: check,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations",
				Action: migrate,
			},
		},
	}
}

// loadConfig reads the config file named by the flags. A missing file at
// the default path falls back to the built-in defaults.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !cmd.IsSet("config") {
			cfg = config.Default()
		} else {
			return nil, err
		}
	}
	if p := cmd.String("level"); p != "" {
		cfg.Level.Path = p
	}
	if d := cmd.String("scripts"); d != "" {
		cfg.Level.ScriptsDir = d
	}
	return cfg, nil
}

func play(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg.Logging, cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	level, err := data.LoadLevel(cfg.Level.Path)
	if err != nil {
		return err
	}

	progress, closeDB, err := openProgress(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	scripts, err := scripting.NewEngine(cfg.Level.ScriptsDir, level.ID, log)
	if err != nil {
		return fmt.Errorf("scripts: %w", err)
	}
	defer scripts.Close()

	sim, err := world.New(world.Options{
		Config:   cfg,
		Level:    level,
		Scripts:  scripts,
		Progress: progress,
		Log:      log,
	})
	if err != nil {
		return fmt.Errorf("build level: %w", err)
	}
	if err := sim.Start(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	restore, err := rawTerminal()
	if err != nil {
		return fmt.Errorf("raw terminal: %w", err)
	}
	defer restore()

	keys := make(chan system.Input, 16)
	go readKeys(os.Stdin, keys)

	persistSys := system.NewPersistenceSystem(sim.Bus(), progress, 5*time.Second, log)
	runner := coresys.NewRunner()
	runner.Register(system.NewInputSystem(sim, keys, 8, cancel, log))
	runner.Register(system.NewTaskSystem(sim))
	runner.Register(system.NewTurnSystem(sim))
	runner.Register(system.NewEventSystem(sim.Bus()))
	runner.Register(persistSys)
	runner.Register(system.NewCleanupSystem(sim.Entities()))

	ticker := time.NewTicker(cfg.Simulation.FrameRate)
	defer ticker.Stop()

	view := newBoard(sim)
	log.Info("game loop started", zap.Duration("frame", cfg.Simulation.FrameRate))
	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Simulation.FrameRate)
			if err := view.Draw(os.Stdout); err != nil {
				return fmt.Errorf("draw: %w", err)
			}
		case <-ctx.Done():
			persistSys.Flush()
			log.Info("stopped", zap.Bool("solved", sim.Solved()))
			return nil
		}
	}
}

// openProgress connects to Postgres when the database is enabled and keeps
// progress in memory otherwise.
func openProgress(ctx context.Context, cfg *config.Config, log *zap.Logger) (persist.Progress, func(), error) {
	if !cfg.Database.Enabled {
		return persist.NewMemoryProgress(), func() {}, nil
	}
	dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(dbCtx, cfg.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	if _, err := persist.RunMigrations(dbCtx, db.Pool, log); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return persist.NewProgressRepo(db), db.Close, nil
}

func check(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := zap.NewNop()

	level, err := data.LoadLevel(cfg.Level.Path)
	if err != nil {
		color.Error.Println(err.Error())
		return cli.Exit("level is invalid", 2)
	}
	scripts, err := scripting.NewEngine(cfg.Level.ScriptsDir, level.ID, log)
	if err != nil {
		color.Error.Println(err.Error())
		return cli.Exit("scripts failed to load", 2)
	}
	defer scripts.Close()

	sim, err := world.New(world.Options{Config: cfg, Level: level, Scripts: scripts, Log: log})
	if err != nil {
		color.Error.Println(err.Error())
		return cli.Exit("level cannot be built", 2)
	}
	if err := sim.Start(ctx); err != nil {
		return err
	}

	color.Info.Printf("%s (%s)\n", level.Name, level.ID)
	fmt.Printf("  size        %dx%d\n", level.Width, level.Height)
	fmt.Printf("  entities    %d\n", len(level.Entities))
	fmt.Printf("  enemies     %d\n", len(sim.Enemies()))
	fmt.Printf("  beams       %d\n", len(sim.Beams()))
	fmt.Printf("  fingerprint %s\n", level.Fingerprint[:16])
	if par := scripts.LevelInt("par", 0); par > 0 {
		fmt.Printf("  par         %d\n", par)
	}
	for _, hook := range []string{"enemy_move", "on_affected", "is_solved"} {
		if scripts.Has(hook) {
			fmt.Printf("  hook        %s\n", hook)
		}
	}

	progress, closeDB, err := openProgress(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()
	status, err := solveStatus(ctx, progress, level)
	if err != nil {
		return err
	}
	fmt.Printf("  progress    %s\n", status)
	color.Success.Println("ok")
	return nil
}

// solveStatus reports whether this exact version of the level has been
// solved before.
func solveStatus(ctx context.Context, progress persist.Progress, level *data.Level) (string, error) {
	solved, err := progress.Solved(ctx, level.ID, level.Fingerprint)
	if err != nil {
		return "", fmt.Errorf("read progress: %w", err)
	}
	if solved {
		return "solved", nil
	}
	return "unsolved", nil
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg.Logging, "")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if cfg.Database.DSN == "" {
		return cli.Exit("database.dsn is not set", 2)
	}
	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	version, err := persist.RunMigrations(ctx, db.Pool, log)
	if err != nil {
		return err
	}
	color.Success.Printf("schema at version %d\n", version)
	return nil
}
