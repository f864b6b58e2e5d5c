// Package app wires configuration, logging, the simulation loop and the HTTP
// listener into one authoritative server process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	stdnet "net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"intersection/server/internal/config"
	"intersection/server/internal/engine"
	"intersection/server/internal/mapping"
	servernet "intersection/server/internal/net"
	"intersection/server/internal/sequencer"
	"intersection/server/internal/sim"
	"intersection/server/internal/synth"
	"intersection/server/internal/telemetry"
	"intersection/server/internal/world"
	"intersection/server/logging"
	loggingSinks "intersection/server/logging/sinks"
)

const recentEventLimit = 256

// ErrAlreadyRunning is returned when another process holds the lock file.
var ErrAlreadyRunning = errors.New("app: another server instance is already running")

type Config struct {
	Settings *config.Config
	Logger   *log.Logger
	Stdout   io.Writer
	// Listener replaces the configured address when set.
	Listener stdnet.Listener
	// Ready is called with the bound address once the server accepts connections.
	Ready func(addr string)
}

func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	telemetryLogger := telemetry.WrapLogger(logger)
	settings := cfg.Settings
	if settings == nil {
		defaults := config.Default()
		settings = &defaults
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	if path := settings.Server.LockPath; path != "" {
		lock := flock.New(path)
		ok, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, path)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				telemetryLogger.Printf("failed to release lock %s: %v", path, err)
			}
		}()
	}

	logConfig := settings.LoggingConfig()
	namedSinks, closers, err := buildSinks(logConfig, stdout)
	if err != nil {
		return err
	}
	defer func() {
		for _, closer := range closers {
			closer.Close()
		}
	}()

	recent := loggingSinks.NewRecentSink(recentEventLimit)
	namedSinks = append(namedSinks, logging.NamedSink{Name: "recent", Sink: recent})

	router, err := logging.NewRouter(logging.SystemClock{}, logConfig, namedSinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	rules := loadRules(settings.Mapping.RulesPath, telemetry.Tagged(telemetryLogger, "mapping"))
	telemetryLogger.Printf("mapping rules loaded: %d (%d enabled)", len(rules), rules.Enabled())

	seed := settings.Harmony.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	worldCfg := settings.WorldConfig()
	w := world.New(worldCfg,
		world.WithClock(router.Clock()),
		world.WithRand(rand.New(rand.NewSource(seed))),
		world.WithPublisher(router),
	)
	seq := sequencer.New(
		sequencer.WithRand(rand.New(rand.NewSource(seed+1))),
		sequencer.WithPlacerOptions(settings.HarmonyOptions()),
		sequencer.WithPublisher(router),
	)
	eng := engine.New(settings.EngineConfig(), mapping.NewEvaluator(rules), seq)

	metrics := router.Metrics()
	loop, err := sim.NewLoop(settings.LoopConfig(), sim.Deps{
		World:      w,
		Engine:     eng,
		Translator: synth.NewTranslator(),
		Clock:      router.Clock(),
		Publisher:  router,
		Logger:     telemetry.Tagged(telemetryLogger, "loop"),
		Metrics:    telemetry.WrapMetrics(metrics),
	}, sim.LoopHooks{
		OnQueueWarning: func(length int) {
			telemetryLogger.Printf("[backpressure] command queue length=%d", length)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to construct simulation loop: %w", err)
	}

	handler := servernet.NewHTTPHandler(loop, servernet.HTTPHandlerConfig{
		ClientDir: settings.Server.ClientDir,
		Logger:    logger,
		Clock:     router.Clock(),
		Publisher: router,
		SendQueue: settings.Server.SendQueue,
		Rules:     rules,
		Telemetry: metrics.Snapshot,
		Router:    router.Stats,
		Events:    recent.Recent,
	})

	listener := cfg.Listener
	if listener == nil {
		listener, err = stdnet.Listen("tcp", settings.Server.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", settings.Server.Addr, err)
		}
	}

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(loopCtx); err != nil {
			telemetryLogger.Printf("simulation loop stopped: %v", err)
		}
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	srv := &http.Server{Handler: handler}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()
	telemetryLogger.Printf("server listening on %s", listener.Addr())
	if cfg.Ready != nil {
		cfg.Ready(listener.Addr().String())
	}

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout())
	defer cancel()
	stopLoop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildSinks(cfg logging.Config, stdout io.Writer) ([]logging.NamedSink, []io.Closer, error) {
	var named []logging.NamedSink
	var closers []io.Closer
	fail := func(err error) ([]logging.NamedSink, []io.Closer, error) {
		for _, closer := range closers {
			closer.Close()
		}
		return nil, nil, err
	}

	if cfg.HasSink("console") {
		named = append(named, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsoleSink(stdout, cfg.Console)})
	}
	if cfg.HasSink("json") {
		if dir := filepath.Dir(cfg.JSON.FilePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fail(fmt.Errorf("create json log dir: %w", err))
			}
		}
		file, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fail(fmt.Errorf("open json log: %w", err))
		}
		closers = append(closers, file)
		named = append(named, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(file, cfg.JSON.FlushInterval)})
	}
	if cfg.HasSink("sqlite") {
		sink, err := loggingSinks.NewSQLite(cfg.SQLite.Path)
		if err != nil {
			return fail(fmt.Errorf("open sqlite log: %w", err))
		}
		named = append(named, logging.NamedSink{Name: "sqlite", Sink: sink})
	}
	return named, closers, nil
}

func loadRules(path string, logger telemetry.Logger) mapping.Rules {
	var (
		rules mapping.Rules
		errs  []error
	)
	if path == "" {
		rules, errs = mapping.Default()
	} else {
		rules, errs = mapping.Load(path)
	}
	for _, err := range errs {
		logger.Printf("%v", err)
	}
	return rules
}
