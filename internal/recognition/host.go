package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"subline/internal/logging"
	"subline/internal/services"
)

// Loader builds a Recognizer for a model variant. Loading may be expensive;
// the Host calls it at most once per variant switch.
type Loader func(variant string) (Recognizer, error)

const lockRetryDelay = 250 * time.Millisecond

var unsafeLockChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Host owns the loaded recognition model. It caches one Recognizer for the
// current variant and hands it out to one run at a time: an in-process slot
// serializes runs inside this process, and a lock file per variant
// serializes runs across processes.
type Host struct {
	load    Loader
	lockDir string
	logger  *slog.Logger

	// slot is a one-token semaphore guarding everything below.
	slot    chan struct{}
	variant string
	cached  Recognizer
	loaded  string
}

// NewHost builds a Host. An empty lockDir disables cross-process locking.
func NewHost(load Loader, lockDir string, logger *slog.Logger) *Host {
	return &Host{
		load:    load,
		lockDir: lockDir,
		logger:  logging.NewComponentLogger(logger, "model-host"),
		slot:    make(chan struct{}, 1),
	}
}

// Current returns the selected variant and whether its model is loaded.
func (h *Host) Current() (string, bool) {
	select {
	case h.slot <- struct{}{}:
		defer h.leave()
		return h.variant, h.cached != nil && h.loaded == h.variant
	default:
		// A run holds the model, so it is loaded.
		return h.variant, true
	}
}

// Invalidate drops the cached model.
func (h *Host) Invalidate(ctx context.Context) error {
	if err := h.enter(ctx); err != nil {
		return err
	}
	defer h.leave()
	h.invalidateLocked()
	return nil
}

// Lease is exclusive use of the loaded model for one run.
type Lease struct {
	Recognizer
	Variant string

	host *Host
	lock *flock.Flock
	done bool
}

// Release returns the model to the Host. It is safe to call more than once.
func (l *Lease) Release() {
	if l == nil || l.done {
		return
	}
	l.done = true
	if l.lock != nil {
		if err := l.lock.Unlock(); err != nil {
			l.host.logger.Warn("failed to release model lock",
				logging.String("variant", l.Variant),
				logging.Error(err),
				logging.String(logging.FieldEventType, "model_lock_release_failed"),
				logging.String(logging.FieldErrorHint, "remove the stale lock file if no other run is active"),
				logging.String(logging.FieldImpact, "other processes may wait on this variant"),
			)
		}
	}
	l.host.leave()
}

// Acquire waits for exclusive use of variant's model and loads it if the
// cache holds another variant or nothing. Switching variants drops the cached
// model. The switch and the lease happen under one hold of the slot, so a
// lease always serves the variant it was asked for. Callers must Release the
// lease.
func (h *Host) Acquire(ctx context.Context, variant string) (*Lease, error) {
	variant = strings.TrimSpace(variant)
	if variant == "" {
		return nil, services.Wrap(services.ErrValidation, "Transcription", "model host", "model variant required", nil)
	}
	if err := h.enter(ctx); err != nil {
		return nil, err
	}
	if variant != h.variant {
		h.invalidateLocked()
		h.variant = variant
	}
	lock, err := h.lockVariant(ctx, h.variant)
	if err != nil {
		h.leave()
		return nil, err
	}
	if h.cached == nil || h.loaded != h.variant {
		started := time.Now()
		rec, err := h.load(h.variant)
		if err != nil {
			if lock != nil {
				_ = lock.Unlock()
			}
			h.leave()
			return nil, err
		}
		h.cached = rec
		h.loaded = h.variant
		h.logger.Info("recognition model ready",
			logging.String("variant", h.variant),
			logging.Duration("load_time", time.Since(started)),
		)
	}
	return &Lease{Recognizer: h.cached, Variant: h.variant, host: h, lock: lock}, nil
}

func (h *Host) enter(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case h.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return services.Wrap(services.ErrTransient, "Transcription", "model host", "gave up waiting for the recognition model", ctx.Err())
	}
}

func (h *Host) leave() {
	<-h.slot
}

func (h *Host) invalidateLocked() {
	if h.cached != nil {
		h.logger.Debug("dropping cached recognition model", logging.String("variant", h.loaded))
	}
	h.cached = nil
	h.loaded = ""
}

func (h *Host) lockVariant(ctx context.Context, variant string) (*flock.Flock, error) {
	if h.lockDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(h.lockDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "Transcription", "model host", "create lock directory", err)
	}
	path := LockPath(h.lockDir, variant)
	lock := flock.New(path)
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTransient, "Transcription", "model host", "gave up waiting for the model lock", err)
		}
		return nil, services.Wrap(services.ErrConfiguration, "Transcription", "model host", fmt.Sprintf("lock %s", path), err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrTransient, "Transcription", "model host", fmt.Sprintf("model %s is locked by another process", variant), nil)
	}
	return lock, nil
}

// LockPath returns the lock file guarding variant inside dir.
func LockPath(dir, variant string) string {
	name := unsafeLockChars.ReplaceAllString(variant, "_")
	return filepath.Join(dir, "model-"+name+".lock")
}
