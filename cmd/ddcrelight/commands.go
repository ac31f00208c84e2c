package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"ddcrelight/internal/config"
	"ddcrelight/internal/daemon"
	"ddcrelight/internal/history"
	"ddcrelight/internal/journal"
	"ddcrelight/internal/logging"
	"ddcrelight/internal/monitor"
	"ddcrelight/internal/sensor"
	"ddcrelight/internal/timeutil"
)

// noLight marks the -light flag as unset.
const noLight = -1.0

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// setup loads the configuration and installs the default logger.
func setup(configPath string) (*config.Config, *logging.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	logger := newLogger(cfg)
	return cfg, logger
}

func newLogger(cfg *config.Config) *logging.Logger {
	logCfg, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		fatal("logging config: %v", err)
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		fatal("create logger: %v", err)
	}
	logging.SetDefault(logger)
	return logger
}

func historyStore(cfg *config.Config) *history.FileStore {
	return history.NewFileStore(cfg.History.Path, timeutil.RealClock{})
}

// readLight returns override when set, otherwise one sampled sensor reading.
func readLight(ctx context.Context, cfg *config.Config, logger *logging.Logger, override float64) (float64, error) {
	if override != noLight {
		if override < 0 {
			return 0, fmt.Errorf("light must not be negative, got %v", override)
		}
		return override, nil
	}

	s, err := sensor.New(cfg.Sensor, logger.WithComponent("sensor").Logger)
	if err != nil {
		return 0, err
	}
	if err := s.Init(ctx); err != nil {
		return 0, fmt.Errorf("light sensor setup failed: %w", err)
	}
	defer s.Close()

	return s.Value(ctx)
}

func cmdDaemon() {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file")
	fs.Parse(os.Args[2:])

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		fatal("load config: %v", err)
	}
	logger := newLogger(cfg)
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	light, err := sensor.New(cfg.Sensor, logger.WithComponent("sensor").Logger)
	if err != nil {
		fatal("%v", err)
	}
	if err := light.Init(ctx); err != nil {
		fatal("light sensor setup failed: %v", err)
	}
	defer light.Close()

	monitorLogger := logger.WithComponent("monitor").Logger
	discover := func(ctx context.Context) ([]monitor.Monitor, error) {
		return monitor.Discover(ctx, loader.Config().Monitors, monitorLogger)
	}
	monitors, err := discover(ctx)
	if err != nil {
		fatal("%v", err)
	}

	interp, err := history.NewInterpolator(historyStore(cfg), logger.WithComponent("history").Logger)
	if err != nil {
		fatal("load history: %v", err)
	}

	d := daemon.New(daemon.Options{
		Sensor:      light,
		Monitors:    monitors,
		Recommender: interp,
		Settings:    daemon.SettingsFromConfig(cfg),
		Rediscover:  discover,
		Logger:      logger.WithComponent("daemon").Logger,
	})

	if cfg.Daemon.WatchConfig {
		loader.OnChange(func(c *config.Config) {
			d.UpdateSettings(daemon.SettingsFromConfig(c))
			if level, err := logging.ParseLevel(c.Logging.Level); err == nil {
				logger.SetLevel(level)
			}
		})
		if err := loader.Watch(); err != nil {
			logger.Warn("config watch disabled", "error", err)
		} else {
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case err := <-loader.Errors():
						logger.Warn("config reload failed", "error", err)
					}
				}
			}()
		}
		defer loader.Close()
	}

	logger.Info("daemon started",
		"history", cfg.History.Path, "sensor", cfg.Sensor.Backend,
		"monitors", len(monitors), "idle", cfg.IdleInterval())

	err = d.Run(ctx)
	stats := d.Stats()
	logger.Info("daemon stopped",
		"passes", stats.Passes, "changes", stats.Changes, "failures", stats.Failures)

	if err != nil && !errors.Is(err, context.Canceled) {
		fatal("%v", err)
	}
	fmt.Println("\rTerminating gracefully...")
}

func cmdSetBrightness() {
	fs := flag.NewFlagSet("set-brightness", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file")
	lightFlag := fs.Float64("light", noLight, "Light level to record against (default: read the sensor)")
	fs.Parse(os.Args[2:])

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: ddcrelight set-brightness [-config path] [-light value] <0-100>")
		os.Exit(1)
	}
	brightness, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		fatal("new_brightness must be an integer, got %q", fs.Arg(0))
	}
	if brightness < history.MinBrightness || brightness > history.MaxBrightness {
		fatal("new_brightness must be between 0 and 100")
	}

	cfg, logger := setup(*configPath)
	defer logger.Close()
	ctx := context.Background()

	light, err := readLight(ctx, cfg, logger, *lightFlag)
	if err != nil {
		fatal("%v", err)
	}

	recorder := history.NewRecorder(historyStore(cfg),
		history.WithPromotionWindow(cfg.PromotionWindow()),
		history.WithLogger(logger.WithComponent("history").Logger),
	)
	res, err := recorder.Record(ctx, light, brightness)
	if err != nil {
		fatal("record brightness: %v", err)
	}

	if cfg.Journal.Enabled {
		appendJournal(ctx, cfg, logger, &journal.Entry{
			RecordedAt: res.Document.LastUpdated,
			Light:      light,
			Brightness: brightness,
			Promoted:   res.Promoted,
		})
	}

	fmt.Printf("Ambient: %s, Monitor Brightness: %d\n", formatLight(light), brightness)
	if res.Promoted {
		fmt.Println("Previous curve promoted to stable.")
	}
}

// appendJournal records e; a journal failure is logged, never fatal.
func appendJournal(ctx context.Context, cfg *config.Config, logger *logging.Logger, e *journal.Entry) {
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		logger.Warn("journal unavailable", "path", cfg.Journal.Path, "error", err)
		return
	}
	defer j.Close()

	if err := j.Append(ctx, e); err != nil {
		logger.Warn("journal append failed", "error", err)
	}
}

func cmdGet() {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file")
	lightFlag := fs.Float64("light", noLight, "Light level to evaluate (default: read the sensor)")
	fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath)
	defer logger.Close()
	ctx := context.Background()

	light, err := readLight(ctx, cfg, logger, *lightFlag)
	if err != nil {
		fatal("%v", err)
	}

	interp, err := history.NewInterpolator(historyStore(cfg), logger.Logger)
	if err != nil {
		fatal("load history: %v", err)
	}
	target, err := interp.Interpolate(light)
	if err != nil {
		fatal("interpolate: %v", err)
	}
	fmt.Println(target)
}

func cmdStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file")
	fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath)
	defer logger.Close()

	store := historyStore(cfg)
	doc, err := store.Load()
	if err != nil {
		fatal("load history: %v", err)
	}
	modTime, err := store.ModTime()
	if err != nil {
		fatal("stat history: %v", err)
	}

	fmt.Println("=== ddcrelight Status ===")
	fmt.Printf("History:      %s\n", store.Path())
	if modTime.IsZero() {
		fmt.Println("              (not created yet, showing defaults)")
	}
	writeStatus(os.Stdout, doc, time.Now(), cfg.PromotionWindow())

	if cfg.Journal.Enabled {
		if j, err := journal.Open(cfg.Journal.Path); err == nil {
			if n, err := j.Count(context.Background()); err == nil {
				fmt.Printf("\nJournal:      %s (%d observations)\n", cfg.Journal.Path, n)
			}
			j.Close()
		}
	}
}

func cmdLog() {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file")
	n := fs.Int("n", 20, "Number of entries to show")
	fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath)
	defer logger.Close()

	if !cfg.Journal.Enabled {
		fatal("journal is disabled in the configuration")
	}
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		fatal("open journal: %v", err)
	}
	defer j.Close()

	entries, err := j.Recent(context.Background(), *n)
	if err != nil {
		fatal("read journal: %v", err)
	}
	writeEntries(os.Stdout, entries)
}

func cmdMonitors() {
	fs := flag.NewFlagSet("monitors", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file")
	fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath)
	defer logger.Close()
	ctx := context.Background()

	monitors, err := monitor.Discover(ctx, cfg.Monitors, logger.WithComponent("monitor").Logger)
	if err != nil {
		fatal("%v", err)
	}

	readings := make([]monitorReading, len(monitors))
	for i, m := range monitors {
		readings[i].ID = m.ID()
		readings[i].Model = monitor.Model(m)
		readings[i].Brightness, readings[i].Err = m.Brightness(ctx)
	}
	writeMonitors(os.Stdout, readings)
}
