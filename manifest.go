package hotmod

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/hotmod/handlers"
)

// Manifest is the on-disk description of a module artifact.
// It can be written as YAML, TOML or JSON; the format is chosen by the
// file extension.
type Manifest struct {
	Name    string         `yaml:"name" toml:"name" json:"name"`
	Version string         `yaml:"version" toml:"version" json:"version"`
	Factory string         `yaml:"factory" toml:"factory" json:"factory"`
	Config  map[string]any `yaml:"config" toml:"config" json:"config"`
	Routes  []RouteSpec    `yaml:"routes" toml:"routes" json:"routes"`

	// Path and Digest are filled in by the loader.
	Path   string `yaml:"-" toml:"-" json:"-"`
	Digest string `yaml:"-" toml:"-" json:"-"`
}

// RouteSpec is a declarative route inside a manifest.
type RouteSpec struct {
	ID      string        `yaml:"id" toml:"id" json:"id"`
	Method  string        `yaml:"method" toml:"method" json:"method"`
	Path    string        `yaml:"path" toml:"path" json:"path"`
	Handler handlers.Spec `yaml:"handler" toml:"handler" json:"handler"`
}

// ManifestExtensions lists the file extensions the loader understands.
var ManifestExtensions = []string{".yaml", ".yml", ".toml", ".json"}

// IsManifestPath reports whether path has a manifest extension.
func IsManifestPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ManifestExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// DecodeManifest parses data according to the extension of path.
func DecodeManifest(path string, data []byte) (*Manifest, error) {
	m := &Manifest{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("decode yaml manifest: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("decode toml manifest: %w", err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("decode json manifest: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	return m, nil
}

// Validate checks the manifest shape. It does not resolve factories.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidModule)
	}
	if strings.TrimSpace(m.Version) == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidModule)
	}
	if m.Factory == "" && len(m.Routes) == 0 {
		return fmt.Errorf("%w: module %q declares neither a factory nor routes", ErrInvalidModule, m.Name)
	}
	seen := make(map[string]struct{}, len(m.Routes))
	for i, r := range m.Routes {
		if r.ID == "" {
			return fmt.Errorf("%w: route %d has no id", ErrInvalidModule, i)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: route id %q declared twice", ErrInvalidModule, r.ID)
		}
		seen[r.ID] = struct{}{}
		if !SupportedMethod(strings.ToUpper(r.Method)) {
			return fmt.Errorf("%w: route %q has unsupported method %q", ErrInvalidModule, r.ID, r.Method)
		}
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("%w: route %q path must start with '/'", ErrInvalidModule, r.ID)
		}
	}
	return nil
}

// copy returns a manifest that shares no slices with m. Config is shallow.
func (m *Manifest) copy() *Manifest {
	cp := *m
	cp.Routes = append([]RouteSpec(nil), m.Routes...)
	if m.Config != nil {
		cp.Config = make(map[string]any, len(m.Config))
		for k, v := range m.Config {
			cp.Config[k] = v
		}
	}
	return &cp
}

// manifestModule is the RuntimeModule built from a manifest. Declarative
// routes are installed after the factory module (if any) registers.
type manifestModule struct {
	manifest *Manifest
	inner    RuntimeModule
	routes   []RouteDefinition
}

func (m *manifestModule) Name() string    { return m.manifest.Name }
func (m *manifestModule) Version() string { return m.manifest.Version }

// Manifest returns the manifest the module was built from.
func (m *manifestModule) Manifest() Manifest { return *m.manifest.copy() }

func (m *manifestModule) Register(rc *RuntimeContext) error {
	if m.inner != nil {
		if err := m.inner.Register(rc); err != nil {
			return err
		}
	}
	for _, def := range m.routes {
		if err := rc.RegisterRoute(def); err != nil {
			return fmt.Errorf("route %q: %w", def.ID, err)
		}
	}
	return nil
}

func (m *manifestModule) Dispose() error {
	if d, ok := m.inner.(Disposable); ok {
		return d.Dispose()
	}
	return nil
}
