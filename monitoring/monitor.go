// Package monitoring records module lifecycle activity: a size-bounded
// history of builds plus a live view of active modules.
package monitoring

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryLimit is the number of build records kept by default.
const DefaultHistoryLimit = 100

// Static errors for monitoring package
var (
	ErrBuildNotFound         = errors.New("build not found")
	ErrBuildAlreadyCompleted = errors.New("build already completed")
	ErrInvalidBuildStatus    = errors.New("invalid terminal build status")
)

// Monitor is an append-only, FIFO-capped log of builds and a mirror of the
// active modules. It is safe for concurrent use.
type Monitor struct {
	mu      sync.RWMutex
	builds  []*BuildRecord // oldest first
	byID    map[string]*BuildRecord
	modules map[string]ActiveModule
	limit   int
	started time.Time
	now     func() time.Time
	newID   func() string
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithHistoryLimit sets the maximum number of build records kept.
// Values below one fall back to DefaultHistoryLimit.
func WithHistoryLimit(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.limit = n
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMonitor creates a monitor. Uptime is measured from this call.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		byID:    make(map[string]*BuildRecord),
		modules: make(map[string]ActiveModule),
		limit:   DefaultHistoryLimit,
		now:     time.Now,
		newID:   newBuildID,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.started = m.now()
	return m
}

// newBuildID returns a UUIDv7 so ids are unique and sort by creation time.
func newBuildID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// Limit returns the configured history cap.
func (m *Monitor) Limit() int {
	return m.limit
}

// StartBuild appends a building record and returns its id.
func (m *Monitor) StartBuild(moduleName, modulePath string, phase BuildPhase) string {
	rec := &BuildRecord{
		ID:         m.newID(),
		ModuleName: moduleName,
		ModulePath: modulePath,
		Phase:      phase,
		Status:     StatusBuilding,
		StartTime:  m.now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds = append(m.builds, rec)
	m.byID[rec.ID] = rec
	for len(m.builds) > m.limit {
		delete(m.byID, m.builds[0].ID)
		m.builds[0] = nil
		m.builds = m.builds[1:]
	}
	return rec.ID
}

// CompleteBuild moves the record id to status. errMsg is stored for
// StatusError only. Unknown or already completed ids leave the history
// untouched and return an error.
func (m *Monitor) CompleteBuild(id string, status BuildStatus, errMsg string) error {
	if status != StatusSuccess && status != StatusError {
		return fmt.Errorf("%w: %q", ErrInvalidBuildStatus, status)
	}
	end := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBuildNotFound, id)
	}
	if rec.Terminal() {
		return fmt.Errorf("%w: %s", ErrBuildAlreadyCompleted, id)
	}
	rec.Status = status
	rec.EndTime = &end
	rec.Duration = end.Sub(rec.StartTime)
	if status == StatusError {
		rec.Error = errMsg
	}
	return nil
}

// GetBuild returns a copy of the record id.
func (m *Monitor) GetBuild(id string) (BuildRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[id]
	if !ok {
		return BuildRecord{}, false
	}
	return rec.clone(), true
}

// RegisterModule creates or replaces the active mirror entry for name.
func (m *Monitor) RegisterModule(name, version string, routeCount int) {
	m.mu.Lock()
	m.modules[name] = ActiveModule{
		Name:       name,
		Version:    version,
		LoadedAt:   m.now(),
		RouteCount: routeCount,
		Status:     ModuleActive,
	}
	m.mu.Unlock()
}

// MarkModuleError flags an active module as unhealthy. Unknown names are ignored.
func (m *Monitor) MarkModuleError(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if am, ok := m.modules[name]; ok {
		am.Status = ModuleError
		m.modules[name] = am
	}
}

// UnregisterModule removes the mirror entry for name.
func (m *Monitor) UnregisterModule(name string) {
	m.mu.Lock()
	delete(m.modules, name)
	m.mu.Unlock()
}

// GetBuilds returns copies of the build history, newest first.
func (m *Monitor) GetBuilds() []BuildRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]BuildRecord, 0, len(m.builds))
	for i := len(m.builds) - 1; i >= 0; i-- {
		out = append(out, m.builds[i].clone())
	}
	return out
}

// GetActiveModules returns copies of the active modules ordered by name.
func (m *Monitor) GetActiveModules() []ActiveModule {
	m.mu.RLock()
	out := make([]ActiveModule, 0, len(m.modules))
	for _, am := range m.modules {
		out = append(out, am)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetStats derives counts from the current history.
func (m *Monitor) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{
		TotalBuilds:   len(m.builds),
		ActiveModules: len(m.modules),
		Uptime:        m.now().Sub(m.started),
	}
	for _, b := range m.builds {
		switch b.Status {
		case StatusSuccess:
			s.SuccessfulBuilds++
		case StatusError:
			s.FailedBuilds++
		case StatusBuilding:
			s.BuildingNow++
		}
	}
	return s
}

// GetState bundles builds, modules and stats for the dashboard.
func (m *Monitor) GetState() State {
	return State{
		Builds:  m.GetBuilds(),
		Modules: m.GetActiveModules(),
		Stats:   m.GetStats(),
	}
}
