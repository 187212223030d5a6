// Package watcher keeps a kernel in sync with a directory of module
// manifests. File events trigger reloads and unloads; an optional cron
// rescan repairs anything the event stream missed.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/hotmod"
)

// Static errors for the watcher package
var (
	ErrAlreadyStarted = errors.New("watcher already started")
	ErrNotStarted     = errors.New("watcher not started")
)

// DefaultDebounce is the quiet period after the last event for a path
// before it is acted on.
const DefaultDebounce = 200 * time.Millisecond

// Kernel is the subset of *hotmod.Kernel the watcher drives.
type Kernel interface {
	Reload(ctx context.Context, path string) error
	UnloadPath(ctx context.Context, path string) (string, error)
	Get(name string) (*hotmod.ModuleMetadata, bool)
	List() []*hotmod.ModuleMetadata
	FindByPath(path string) (*hotmod.ModuleMetadata, bool)
}

// ManifestReader reads a manifest without building a module from it.
// *hotmod.FileLoader implements it.
type ManifestReader interface {
	ReadManifest(path string) (*hotmod.Manifest, error)
}

// Config configures a Watcher.
type Config struct {
	Dir      string
	Debounce time.Duration
	// Rescan is a cron spec for periodic directory reconciliation; empty disables it.
	Rescan string
	// Manifests is used by Rescan to learn module names. Defaults to a new FileLoader.
	Manifests ManifestReader
}

// Watcher applies manifest changes in Dir to a kernel.
type Watcher struct {
	cfg    Config
	kernel Kernel
	logger hotmod.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	cron    *cron.Cron
	timers  map[string]*time.Timer
	// shadowed maps a manifest path to the path of the active artifact that
	// already owns its module name.
	shadowed map[string]string
	cancel  context.CancelFunc
	done    chan struct{}
	pending sync.WaitGroup
}

// New creates a watcher. It does nothing until Start is called.
func New(cfg Config, kernel Kernel, logger hotmod.Logger) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = hotmod.NoopLogger()
	}
	if cfg.Manifests == nil {
		cfg.Manifests = hotmod.NewFileLoader()
	}
	return &Watcher{
		cfg:      cfg,
		kernel:   kernel,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
		shadowed: make(map[string]string),
	}
}

// Start begins watching. Events are processed until Stop is called or ctx ends.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return ErrAlreadyStarted
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	if err := fsw.Add(w.cfg.Dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	var c *cron.Cron
	if w.cfg.Rescan != "" {
		c = cron.New()
		if _, err := c.AddFunc(w.cfg.Rescan, func() { w.rescanLogged(runCtx) }); err != nil {
			cancel()
			_ = fsw.Close()
			return fmt.Errorf("schedule rescan %q: %w", w.cfg.Rescan, err)
		}
		c.Start()
	}
	w.fsw = fsw
	w.cron = c
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.loop(runCtx, fsw, w.done)
	w.logger.Info("Watching module directory", "dir", w.cfg.Dir, "debounce", w.cfg.Debounce, "rescan", w.cfg.Rescan)
	return nil
}

// Stop ends watching and waits for in-flight kernel calls to return.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return ErrNotStarted
	}
	fsw, c, cancel, done := w.fsw, w.cron, w.cancel, w.done
	w.fsw, w.cron, w.cancel, w.done = nil, nil, nil, nil
	for p, t := range w.timers {
		if t.Stop() {
			w.pending.Done()
		}
		delete(w.timers, p)
	}
	w.mu.Unlock()

	cancel()
	err := fsw.Close()
	<-done
	if c != nil {
		<-c.Stop().Done()
	}
	w.pending.Wait()
	return err
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "dir", w.cfg.Dir, "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !hotmod.IsManifestPath(ev.Name) {
		return
	}
	w.logger.Debug("Module artifact event", "path", ev.Name, "op", ev.Op.String())
	w.schedule(ctx, ev.Name)
}

// schedule debounces work for path; the last event within the window wins.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return
	}
	if t, ok := w.timers[path]; ok && t.Stop() {
		w.pending.Done()
	}
	w.pending.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.cfg.Debounce, func() {
		defer w.pending.Done()
		w.mu.Lock()
		if w.timers[path] == t {
			delete(w.timers, path)
		}
		w.mu.Unlock()
		w.sync(ctx, path)
	})
	w.timers[path] = t
}

// sync brings the kernel in line with the current state of path.
func (w *Watcher) sync(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	if exists(path) {
		if err := w.kernel.Reload(ctx, path); err != nil {
			w.logger.Error("Module reload failed", "path", path, "error", err)
			return
		}
		w.logger.Info("Module reloaded from disk", "path", path)
		return
	}
	name, err := w.kernel.UnloadPath(ctx, path)
	if err != nil {
		w.logger.Error("Module unload failed", "module", name, "path", path, "error", err)
		return
	}
	if name != "" {
		w.logger.Info("Module artifact removed, module unloaded", "module", name, "path", path)
	}
}

// Rescan loads manifests that are not active yet and unloads active modules
// whose artifact inside Dir has disappeared. Modules loaded from outside Dir
// are left alone. A manifest declaring a name that is already active from
// another artifact is skipped, so duplicate names never cause churn.
func (w *Watcher) Rescan(ctx context.Context) error {
	paths, err := hotmod.ManifestFiles(w.cfg.Dir)
	if err != nil {
		return err
	}
	var errs []error
	shadowed := make(map[string]string)
	for _, p := range paths {
		if _, active := w.kernel.FindByPath(p); active {
			continue
		}
		if m, err := w.cfg.Manifests.ReadManifest(p); err == nil {
			if owner, ok := w.kernel.Get(m.Name); ok {
				shadowed[p] = owner.Path
				w.reportShadowed(p, m.Name, owner.Path)
				continue
			}
		}
		if err := w.kernel.Reload(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	w.mu.Lock()
	w.shadowed = shadowed
	w.mu.Unlock()

	dir, err := filepath.Abs(w.cfg.Dir)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	for _, md := range w.kernel.List() {
		if filepath.Dir(md.Path) != dir || exists(md.Path) {
			continue
		}
		if _, err := w.kernel.UnloadPath(ctx, md.Path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// reportShadowed logs a duplicate module name once per path and owner.
func (w *Watcher) reportShadowed(path, name, owner string) {
	w.mu.Lock()
	seen := w.shadowed[path] == owner
	w.mu.Unlock()
	if !seen {
		w.logger.Warn("Module name already active from another artifact, skipping",
			"module", name, "path", path, "active", owner)
	}
}

func (w *Watcher) rescanLogged(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := w.Rescan(ctx); err != nil {
		w.logger.Error("Module rescan failed", "dir", w.cfg.Dir, "error", err)
	}
}
