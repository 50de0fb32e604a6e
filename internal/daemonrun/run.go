// Package daemonrun wires the daemon process: logging, the queue store, the
// pipeline dispatcher, the HTTP API, and the optical drive monitor.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"platter/internal/api"
	"platter/internal/config"
	"platter/internal/disc"
	"platter/internal/display"
	"platter/internal/handbrake"
	"platter/internal/imaging"
	"platter/internal/logging"
	"platter/internal/media"
	"platter/internal/pipeline"
	"platter/internal/preflight"
	"platter/internal/queue"
	"platter/internal/textutil"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

const shutdownTimeout = 5 * time.Second

// Run starts the platter daemon and blocks until the context is canceled or
// a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "platter.log")},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Paths.LogDir, "platter.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another platter daemon holds %s", lock.Path())
	}
	defer lock.Unlock()

	pidPath := filepath.Join(cfg.Paths.LogDir, "platter.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logPreflight(signalCtx, logger, cfg)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	broker := api.NewBroker()
	hub := display.NewHub(func(name string) display.Handle {
		return display.Multi(
			display.NewLogHandle(name, logger),
			api.NewHandle(name, broker),
		)
	})
	defer hub.Close()

	imager, err := imaging.New(cfg.ImagingBinary(), cfg.Imaging.TimeoutSeconds)
	if err != nil {
		return fmt.Errorf("init imaging client: %w", err)
	}
	encoder, err := handbrake.New(cfg.HandBrakeBinary(), cfg.HandBrake.PresetsPath)
	if err != nil {
		return fmt.Errorf("init handbrake client: %w", err)
	}
	scanner := media.NewScanner(encoder.Scan)

	dispatcher, err := pipeline.New(cfg, store, hub, imager, scanner, encoder, logger)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}
	if err := dispatcher.RestartIncompleteJobs(signalCtx); err != nil {
		logger.Warn("restart incomplete jobs", logging.Error(err))
	}
	if err := dispatcher.Start(signalCtx); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	defer dispatcher.Stop()

	listener, err := net.Listen("tcp", cfg.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("bind api listener: %w", err)
	}
	httpServer := &http.Server{Handler: api.NewServer(dispatcher, broker, logger).Router()}
	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	logger.Info("api listening", logging.String("addr", listener.Addr().String()))

	monitor := disc.NewMonitor(cfg.Disc.Device, logger, insertHandler(cfg, dispatcher))
	if cfg.Disc.Monitor && monitor != nil {
		if err := monitor.Start(signalCtx); err != nil {
			logger.Warn("disc monitor unavailable", logging.Error(err))
		}
		defer monitor.Stop()
	}

	logger.Info("platter daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.Bool("processing_enabled", dispatcher.Enabled()),
	)

	select {
	case <-signalCtx.Done():
	case err, ok := <-serveErr:
		if ok && err != nil {
			logger.Error("api server failed", logging.Error(err))
		}
	}

	logger.Info("platter daemon shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown", logging.Error(err))
	}
	return nil
}

// insertHandler enqueues a rip job for every disc insertion on the watched
// drive. Duplicate insertions of the same disc are absorbed by the queue.
func insertHandler(cfg *config.Config, dispatcher *pipeline.Dispatcher) disc.Handler {
	return func(ctx context.Context, event disc.InsertEvent) {
		source := media.NewDriveSource(event.Device, event.Volume)
		outputPath := filepath.Join(cfg.Paths.OutputDir, textutil.SanitizeFileName(event.Volume)+".mkv")
		_, _ = dispatcher.Enqueue(ctx, source, outputPath, 0, true)
	}
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(ctx, cfg)
	for _, result := range results {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
	if preflight.Passed(results) {
		logger.Info("preflight checks passed", logging.Int("checks", len(results)))
	}
}

func writePIDFile(path string) error {
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
