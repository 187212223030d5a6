package monitoring

import "time"

// BuildStatus is the state of a build record.
type BuildStatus string

const (
	StatusBuilding BuildStatus = "building"
	StatusSuccess  BuildStatus = "success"
	StatusError    BuildStatus = "error"
)

// BuildPhase tells which step of a load a record covers.
type BuildPhase string

const (
	// PhaseResolve covers artifact resolution. The module name is not known
	// yet, so these records use UnknownModule as their name.
	PhaseResolve BuildPhase = "resolve"
	// PhaseRegister covers unloading a previous instance and registering the new one.
	PhaseRegister BuildPhase = "register"
)

// UnknownModule is the provisional module name of resolve-phase records.
const UnknownModule = "unknown"

// ModuleStatus is the state of an active module mirror entry.
type ModuleStatus string

const (
	ModuleActive ModuleStatus = "active"
	ModuleError  ModuleStatus = "error"
)

// BuildRecord is one load attempt. It starts in StatusBuilding and moves
// exactly once to StatusSuccess or StatusError.
type BuildRecord struct {
	ID         string        `json:"id"`
	ModuleName string        `json:"moduleName"`
	ModulePath string        `json:"modulePath"`
	Phase      BuildPhase    `json:"phase"`
	Status     BuildStatus   `json:"status"`
	StartTime  time.Time     `json:"startTime"`
	EndTime    *time.Time    `json:"endTime,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Terminal reports whether the record has completed.
func (b BuildRecord) Terminal() bool {
	return b.Status == StatusSuccess || b.Status == StatusError
}

func (b *BuildRecord) clone() BuildRecord {
	cp := *b
	if b.EndTime != nil {
		t := *b.EndTime
		cp.EndTime = &t
	}
	return cp
}

// ActiveModule mirrors a registry entry for observability.
type ActiveModule struct {
	Name       string       `json:"name"`
	Version    string       `json:"version"`
	LoadedAt   time.Time    `json:"loadedAt"`
	RouteCount int          `json:"routeCount"`
	Status     ModuleStatus `json:"status"`
}

// Stats are counts derived from the build history and active modules.
type Stats struct {
	TotalBuilds      int           `json:"totalBuilds"`
	SuccessfulBuilds int           `json:"successfulBuilds"`
	FailedBuilds     int           `json:"failedBuilds"`
	BuildingNow      int           `json:"buildingNow"`
	ActiveModules    int           `json:"activeModules"`
	Uptime           time.Duration `json:"uptime"`
}

// State is the full snapshot served by the dashboard.
type State struct {
	Builds  []BuildRecord  `json:"builds"`
	Modules []ActiveModule `json:"modules"`
	Stats   Stats          `json:"stats"`
}
