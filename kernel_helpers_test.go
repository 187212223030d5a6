package hotmod

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// Static errors for kernel tests
var (
	errTestRouteExists   = errors.New("route already exists")
	errTestRouteNotFound = errors.New("route not found")
	errTestLoaderMissing = errors.New("no module for path")
)

// recordingAdapter is an HTTPAdapter that keeps a journal of every call.
type recordingAdapter struct {
	mu              sync.Mutex
	routes          map[string]RouteDefinition
	journal         []string
	registerCalls   map[string]int
	unregisterCalls map[string]int
	failRegister    map[string]error
	failUnregister  map[string]error
}

func newRecordingAdapter() *recordingAdapter {
	return &recordingAdapter{
		routes:          make(map[string]RouteDefinition),
		registerCalls:   make(map[string]int),
		unregisterCalls: make(map[string]int),
		failRegister:    make(map[string]error),
		failUnregister:  make(map[string]error),
	}
}

func (a *recordingAdapter) RegisterRoute(def RouteDefinition) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.registerCalls[def.ID]++
	if err := a.failRegister[def.ID]; err != nil {
		return err
	}
	if _, exists := a.routes[def.ID]; exists {
		return fmt.Errorf("%w: %s", errTestRouteExists, def.ID)
	}
	a.routes[def.ID] = def
	a.journal = append(a.journal, "+"+def.ID)
	return nil
}

func (a *recordingAdapter) UnregisterRoute(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unregisterCalls[id]++
	if err := a.failUnregister[id]; err != nil {
		return err
	}
	if _, exists := a.routes[id]; !exists {
		return fmt.Errorf("%w: %s", errTestRouteNotFound, id)
	}
	delete(a.routes, id)
	a.journal = append(a.journal, "-"+id)
	return nil
}

func (a *recordingAdapter) note(entry string) {
	a.mu.Lock()
	a.journal = append(a.journal, entry)
	a.mu.Unlock()
}

func (a *recordingAdapter) live() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.routes))
	for id := range a.routes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (a *recordingAdapter) entries() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.journal...)
}

func (a *recordingAdapter) unregistered(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unregisterCalls[id]
}

// testModule registers one GET route per id.
type testModule struct {
	name    string
	version string
	routes  []string

	registerErr  error
	failAfter    int // register this many routes, then fail with registerErr
	panicMessage string
	disposeErr   error
	beforeReg    func()

	journal  *recordingAdapter
	mu       sync.Mutex
	disposed int
}

func (m *testModule) Name() string    { return m.name }
func (m *testModule) Version() string { return m.version }

func (m *testModule) Register(rc *RuntimeContext) error {
	if m.beforeReg != nil {
		m.beforeReg()
	}
	for i, id := range m.routes {
		if m.registerErr != nil && i == m.failAfter {
			return m.registerErr
		}
		if m.panicMessage != "" && i == m.failAfter {
			panic(m.panicMessage)
		}
		if err := rc.RegisterRoute(RouteDefinition{
			ID:      id,
			Method:  MethodGet,
			Path:    "/" + id,
			Handler: http.NotFoundHandler(),
		}); err != nil {
			return err
		}
	}
	if m.registerErr != nil {
		return m.registerErr
	}
	if m.panicMessage != "" {
		panic(m.panicMessage)
	}
	return nil
}

func (m *testModule) Dispose() error {
	m.mu.Lock()
	m.disposed++
	m.mu.Unlock()
	if m.journal != nil {
		m.journal.note("dispose:" + m.name + "@" + m.version)
	}
	return m.disposeErr
}

func (m *testModule) disposeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

// mapLoader returns the next queued module for a path on every Load.
type mapLoader struct {
	mu      sync.Mutex
	modules map[string][]RuntimeModule
	err     map[string]error
}

func newMapLoader() *mapLoader {
	return &mapLoader{
		modules: make(map[string][]RuntimeModule),
		err:     make(map[string]error),
	}
}

func (l *mapLoader) add(path string, mods ...RuntimeModule) {
	l.mu.Lock()
	l.modules[path] = append(l.modules[path], mods...)
	l.mu.Unlock()
}

func (l *mapLoader) Load(ctx context.Context, path string) (RuntimeModule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.err[path]; err != nil {
		return nil, err
	}
	queue := l.modules[path]
	if len(queue) == 0 {
		return nil, fmt.Errorf("%w: %s", errTestLoaderMissing, path)
	}
	mod := queue[0]
	if len(queue) > 1 {
		l.modules[path] = queue[1:]
	}
	return mod, nil
}

func newTestKernel(t *testing.T, loader Loader, opts ...Option) (*Kernel, *recordingAdapter) {
	t.Helper()
	adapter := newRecordingAdapter()
	all := append([]Option{WithLoader(loader), WithLogger(NoopLogger())}, opts...)
	k, err := NewKernel(adapter, all...)
	require.NoError(t, err)
	return k, adapter
}
