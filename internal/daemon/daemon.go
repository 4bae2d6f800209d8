package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"bookclub/internal/bookclub"
	"bookclub/internal/config"
	"bookclub/internal/logging"
	"bookclub/internal/store"
)

// Daemon hosts the HTTP API over the bookclub services and enforces
// single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	svc    *bookclub.Services
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Bind         string
	DatabasePath string
	LockFilePath string
	StartedAt    time.Time
	Groups       map[store.GroupStatus]int
	Migrations   []store.MigrationState
}

// New constructs a daemon over already-wired services.
func New(cfg *config.Config, svc *bookclub.Services, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || svc == nil || svc.Store == nil {
		return nil, errors.New("daemon requires config and services")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		svc:      svc,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another bookclub daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("bookclub daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.api.address()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop shuts the API down and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("bookclub daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.svc.Store.Close()
}

// Handler returns the API router. Tests drive it without a listener.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}

// Addr returns the bound listener address, or the configured bind before Start.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.svc.Notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status. Store errors leave the affected
// fields empty rather than failing the whole report.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()

	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Bind:         d.api.address(),
		DatabasePath: d.svc.Store.Path(),
		LockFilePath: d.lockPath,
		StartedAt:    startedAt,
	}
	if counts, err := d.svc.Groups.Counts(ctx); err != nil {
		d.logger.Warn("group counts unavailable", logging.Error(err))
	} else {
		status.Groups = counts
	}
	if migrations, err := d.svc.Store.Migrations(ctx); err != nil {
		d.logger.Warn("migration status unavailable", logging.Error(err))
	} else {
		status.Migrations = migrations
	}
	return status
}
