package hotmod

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/GoCodeAlone/hotmod/monitoring"
)

// Kernel orchestrates module loading, unloading and reloading.
//
// Per module name the kernel drives this state machine:
//
//	UNREGISTERED --load--> REGISTERING --success--> ACTIVE
//	REGISTERING  --failure--> UNREGISTERED
//	ACTIVE --unload--> DISPOSING --done--> UNREGISTERED
//	ACTIVE --reload--> unload, then load, as one operation
//
// Operations targeting the same artifact path or module name run one at a
// time in arrival order; operations on different modules run concurrently.
// Once a registry mutation has started it runs to completion even if the
// caller's context ends.
type Kernel struct {
	*observers

	adapter   HTTPAdapter
	loader    Loader
	registry  *ModuleRegistry
	monitor   *monitoring.Monitor
	container Container
	logger    Logger

	paths *keyedQueue
	names *keyedQueue

	historyLimit int
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithLogger sets the kernel logger. *slog.Logger satisfies Logger.
func WithLogger(logger Logger) Option {
	return func(k *Kernel) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// WithLoader replaces the default FileLoader.
func WithLoader(loader Loader) Option {
	return func(k *Kernel) {
		if loader != nil {
			k.loader = loader
		}
	}
}

// WithMonitor supplies the monitor the kernel records builds into.
func WithMonitor(monitor *monitoring.Monitor) Option {
	return func(k *Kernel) {
		if monitor != nil {
			k.monitor = monitor
		}
	}
}

// WithContainer supplies the dependency container handed to modules.
func WithContainer(container Container) Option {
	return func(k *Kernel) {
		if container != nil {
			k.container = container
		}
	}
}

// WithHistoryLimit creates the kernel's monitor with the given build history
// cap. It has no effect when WithMonitor is also used.
func WithHistoryLimit(n int) Option {
	return func(k *Kernel) {
		k.historyLimit = n
	}
}

// NewKernel creates a kernel that installs routes through adapter.
func NewKernel(adapter HTTPAdapter, opts ...Option) (*Kernel, error) {
	if adapter == nil {
		return nil, ErrNilAdapter
	}
	k := &Kernel{
		adapter:  adapter,
		registry: NewModuleRegistry(),
		logger:   slog.Default(),
		paths:    newKeyedQueue(),
		names:    newKeyedQueue(),
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.loader == nil {
		k.loader = NewFileLoader()
	}
	if k.monitor == nil {
		k.monitor = monitoring.NewMonitor(monitoring.WithHistoryLimit(k.historyLimit))
	}
	if k.container == nil {
		k.container = NewServiceContainer()
	}
	k.observers = newObservers(k.logger)
	return k, nil
}

// Monitor returns the activity monitor.
func (k *Kernel) Monitor() *monitoring.Monitor {
	return k.monitor
}

// Container returns the dependency container shared with modules.
func (k *Kernel) Container() Container {
	return k.container
}

// Loader returns the artifact loader.
func (k *Kernel) Loader() Loader {
	return k.loader
}

// Load resolves the artifact at path and registers the module it describes.
// If a module of the same name is active it is fully unloaded first.
//
// Two build records are produced: a resolve-phase record under the name
// "unknown" covering artifact resolution, and, once the name is known, a
// register-phase record covering teardown of the previous instance and
// registration. Every record reaches a terminal status on every exit path.
func (k *Kernel) Load(ctx context.Context, path string) (err error) {
	buildID := k.startBuild(monitoring.UnknownModule, path, monitoring.PhaseResolve)
	defer func() {
		if r := recover(); r != nil {
			k.finishBuild(buildID, monitoring.UnknownModule, path, monitoring.PhaseResolve, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	release, err := k.paths.acquire(ctx, pathKey(path))
	if err != nil {
		k.finishBuild(buildID, monitoring.UnknownModule, path, monitoring.PhaseResolve, err)
		return err
	}
	defer release()

	module, err := k.resolve(ctx, path)
	k.finishBuild(buildID, monitoring.UnknownModule, path, monitoring.PhaseResolve, err)
	if err != nil {
		k.logger.Error("Failed to resolve module", "path", path, "error", err)
		return err
	}

	return k.install(ctx, module, path)
}

// Reload is Load for a module the caller expects to be active already.
func (k *Kernel) Reload(ctx context.Context, path string) error {
	k.logger.Debug("Reloading module", "path", path)
	return k.Load(ctx, path)
}

// Unload disposes the named module and removes its routes. Unloading a name
// that is not active logs a warning and returns nil. Route teardown failures
// are returned joined; the module is removed from the registry regardless.
func (k *Kernel) Unload(ctx context.Context, name string) error {
	release, err := k.names.acquire(ctx, name)
	if err != nil {
		return err
	}
	defer release()
	return k.unloadLocked(name)
}

// UnloadPath unloads the module that was loaded from path and returns its
// name. The match is re-checked under the name's queue slot, so an instance
// reloaded from a different artifact in the meantime is left alone and ""
// is returned.
func (k *Kernel) UnloadPath(ctx context.Context, path string) (string, error) {
	md, ok := k.FindByPath(path)
	if !ok {
		return "", nil
	}
	name := md.Name()
	release, err := k.names.acquire(ctx, name)
	if err != nil {
		return "", err
	}
	defer release()

	current := k.registry.Get(name)
	if current == nil || pathKey(current.Path) != pathKey(path) {
		k.logger.Debug("Artifact no longer backs module", "module", name, "path", path)
		return "", nil
	}
	return name, k.unloadLocked(name)
}

// UnloadAll unloads every active module, e.g. on host shutdown.
func (k *Kernel) UnloadAll(ctx context.Context) error {
	var errs []error
	for _, md := range k.List() {
		if err := k.Unload(ctx, md.Name()); err != nil {
			errs = append(errs, fmt.Errorf("unload %s: %w", md.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LoadDir loads every manifest file directly inside dir in name order.
// A failing artifact does not stop the others; failures are returned joined.
func (k *Kernel) LoadDir(ctx context.Context, dir string) error {
	paths, err := ManifestFiles(dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range paths {
		if err := k.Load(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List returns the active modules ordered by name.
func (k *Kernel) List() []*ModuleMetadata {
	return k.registry.List()
}

// Get returns the metadata of the named active module.
func (k *Kernel) Get(name string) (*ModuleMetadata, bool) {
	md := k.registry.Get(name)
	return md, md != nil
}

// FindByPath returns the active module that was loaded from path.
func (k *Kernel) FindByPath(path string) (*ModuleMetadata, bool) {
	key := pathKey(path)
	for _, md := range k.registry.List() {
		if pathKey(md.Path) == key {
			return md, true
		}
	}
	return nil, false
}

// Flush waits until all pending observer notifications have been delivered.
func (k *Kernel) Flush() {
	k.observers.wait()
}

func (k *Kernel) resolve(ctx context.Context, path string) (module RuntimeModule, err error) {
	defer func() {
		if r := recover(); r != nil {
			module, err = nil, fmt.Errorf("%w: loader panicked on %s: %v", ErrInvalidModule, path, r)
		}
	}()
	module, err = k.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := validateModule(module); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return module, nil
}

func validateModule(module RuntimeModule) error {
	if module == nil {
		return fmt.Errorf("%w: %w", ErrInvalidModule, ErrNilModule)
	}
	if strings.TrimSpace(module.Name()) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidModule)
	}
	if strings.TrimSpace(module.Version()) == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidModule)
	}
	return nil
}

// install runs the register phase under the module name's queue slot.
func (k *Kernel) install(ctx context.Context, module RuntimeModule, path string) (err error) {
	name := module.Name()
	buildID := k.startBuild(name, path, monitoring.PhaseRegister)
	defer func() {
		if r := recover(); r != nil {
			k.finishBuild(buildID, name, path, monitoring.PhaseRegister, fmt.Errorf("panic: %v", r))
			panic(r)
		}
		k.finishBuild(buildID, name, path, monitoring.PhaseRegister, err)
	}()

	release, err := k.names.acquire(ctx, name)
	if err != nil {
		return err
	}
	defer release()

	// Routes left behind by an incomplete teardown keep serving the previous
	// instance; the new instance is flagged so the dashboard shows it.
	var staleRoutes bool
	if k.registry.Has(name) {
		if terr := k.unloadLocked(name); terr != nil {
			staleRoutes = true
			k.logger.Warn("Previous instance teardown incomplete", "module", name, "error", terr)
		}
	}

	k.logger.Info("Loading module", "module", name, "version", module.Version(), "path", path)

	// The caller's context may end during registration; the mutation still
	// runs to completion so the registry never holds a half-registered module.
	rc := newRuntimeContext(context.WithoutCancel(ctx), k.adapter, k.container, k.logger)
	if rerr := callRegister(module, rc); rerr != nil {
		k.rollbackRoutes(name, rc.RouteIDs())
		err = fmt.Errorf("%w: module %q: %w", ErrRegistrationFailed, name, rerr)
		k.logger.Error("Module registration failed", "module", name, "error", rerr)
		return err
	}

	routeIDs := rc.RouteIDs()
	k.registry.Register(module, routeIDs, pathKey(path))
	k.monitor.RegisterModule(name, module.Version(), len(routeIDs))
	if staleRoutes {
		k.monitor.MarkModuleError(name)
	}
	k.emit(EventTypeModuleLoaded, ModuleEventData{
		Module:  name,
		Version: module.Version(),
		Path:    path,
		Routes:  routeIDs,
	})
	k.logger.Info("Module registered", "module", name, "routes", len(routeIDs))
	return nil
}

func callRegister(module RuntimeModule, rc *RuntimeContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return module.Register(rc)
}

// rollbackRoutes removes routes a failed Register call already installed.
func (k *Kernel) rollbackRoutes(name string, routeIDs []string) {
	for i := len(routeIDs) - 1; i >= 0; i-- {
		if err := k.adapter.UnregisterRoute(routeIDs[i]); err != nil {
			k.logger.Error("Failed to roll back route", "module", name, "route", routeIDs[i], "error", err)
		}
	}
}

// unloadLocked tears the named module down. The caller holds the name slot.
func (k *Kernel) unloadLocked(name string) error {
	md := k.registry.Get(name)
	if md == nil {
		k.logger.Warn("Module not found", "module", name, "error", ErrUnknownModule)
		return nil
	}

	k.logger.Info("Unloading module", "module", name)

	if d, ok := md.Module.(Disposable); ok {
		if err := callDispose(d); err != nil {
			k.logger.Error("Module dispose failed", "module", name, "error", err)
			k.emit(EventTypeModuleDisposeFailed, ModuleEventData{Module: name, Version: md.Version, Error: err.Error()})
		}
	}

	var errs []error
	for _, id := range md.RegisteredRoutes {
		if err := k.adapter.UnregisterRoute(id); err != nil {
			errs = append(errs, fmt.Errorf("unregister route %q: %w", id, err))
		}
	}

	k.registry.Unregister(name)
	k.monitor.UnregisterModule(name)

	teardownErr := errors.Join(errs...)
	if teardownErr != nil {
		k.emit(EventTypeModuleTeardownFailed, ModuleEventData{Module: name, Version: md.Version, Error: teardownErr.Error()})
	}
	k.emit(EventTypeModuleUnloaded, ModuleEventData{
		Module:  name,
		Version: md.Version,
		Path:    md.Path,
		Routes:  md.RegisteredRoutes,
	})
	k.logger.Info("Module unloaded", "module", name)
	return teardownErr
}

func callDispose(d Disposable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.Dispose()
}

func (k *Kernel) startBuild(name, path string, phase monitoring.BuildPhase) string {
	id := k.monitor.StartBuild(name, path, phase)
	k.emit(EventTypeBuildStarted, BuildEventData{
		BuildID: id,
		Module:  name,
		Path:    path,
		Phase:   string(phase),
		Status:  string(monitoring.StatusBuilding),
	})
	return id
}

// finishBuild completes buildID as success when err is nil, error otherwise.
func (k *Kernel) finishBuild(buildID, name, path string, phase monitoring.BuildPhase, err error) {
	status, msg, eventType := monitoring.StatusSuccess, "", EventTypeBuildCompleted
	if err != nil {
		status, msg, eventType = monitoring.StatusError, err.Error(), EventTypeBuildFailed
	}
	if cerr := k.monitor.CompleteBuild(buildID, status, msg); cerr != nil {
		// Evicted by a burst of newer builds or completed twice.
		k.logger.Debug("Build completion not recorded", "build", buildID, "error", cerr)
		return
	}
	data := BuildEventData{
		BuildID: buildID,
		Module:  name,
		Path:    path,
		Phase:   string(phase),
		Status:  string(status),
		Error:   msg,
	}
	if rec, ok := k.monitor.GetBuild(buildID); ok {
		data.Duration = rec.Duration
	}
	k.emit(eventType, data)
}

// ManifestFiles lists manifest files directly inside dir, sorted by name.
func ManifestFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read module dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsManifestPath(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func pathKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(path)
}
