package hotmod

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/GoCodeAlone/hotmod/handlers"
)

// Loader resolves an artifact path to a fresh, validated module.
// Every call must observe the artifact's current on-disk state.
type Loader interface {
	Load(ctx context.Context, path string) (RuntimeModule, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, path string) (RuntimeModule, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, path string) (RuntimeModule, error) {
	return f(ctx, path)
}

// Factory builds a module from its manifest. Factories let compiled Go code
// be activated by a manifest that names them.
type Factory func(m Manifest) (RuntimeModule, error)

// DefaultManifestCacheSize bounds the number of parsed manifests kept by a
// FileLoader.
const DefaultManifestCacheSize = 256

// FileLoader loads module manifests from the filesystem.
//
// The file is read on every Load. Parsed manifests are cached by the SHA-256
// digest of the file bytes, never by path, so an edited file is always
// re-parsed while an unchanged one skips decoding. Each Load returns a new
// module instance with freshly built handlers.
type FileLoader struct {
	mu        sync.RWMutex
	factories map[string]Factory

	cacheMu   sync.Mutex
	cache     map[string]*list.Element
	order     *list.List
	cacheSize int

	readFile func(string) ([]byte, error)
}

type cacheEntry struct {
	digest   string
	manifest *Manifest
}

// NewFileLoader creates a loader with the default cache size.
func NewFileLoader() *FileLoader {
	return &FileLoader{
		factories: make(map[string]Factory),
		cache:     make(map[string]*list.Element),
		order:     list.New(),
		cacheSize: DefaultManifestCacheSize,
		readFile:  os.ReadFile,
	}
}

// RegisterFactory makes f available to manifests declaring `factory: name`.
func (l *FileLoader) RegisterFactory(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("%w: factory name and function are required", ErrInvalidModule)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrFactoryAlreadyExists, name)
	}
	l.factories[name] = f
	return nil
}

// Load implements Loader.
func (l *FileLoader) Load(ctx context.Context, path string) (RuntimeModule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	manifest, err := l.ReadManifest(path)
	if err != nil {
		return nil, err
	}
	return l.build(manifest)
}

// ReadManifest reads and validates the manifest at path without building
// a module.
func (l *FileLoader) ReadManifest(path string) (*Manifest, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", ErrInvalidModule, path, err)
	}
	if !IsManifestPath(resolved) {
		return nil, fmt.Errorf("%w: %w: %s", ErrInvalidModule, ErrUnsupportedFormat, path)
	}
	data, err := l.readFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidModule, path, err)
	}

	sum := sha256.Sum256(data)
	// Path participates in the key because the format is derived from it.
	digest := hex.EncodeToString(sum[:]) + ":" + strings.ToLower(filepath.Ext(resolved))

	if cached := l.cached(digest); cached != nil {
		cp := cached.copy()
		cp.Path = resolved
		return cp, nil
	}

	manifest, err := DecodeManifest(resolved, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidModule, path, err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	manifest.Digest = hex.EncodeToString(sum[:])
	l.store(digest, manifest)

	cp := manifest.copy()
	cp.Path = resolved
	return cp, nil
}

func (l *FileLoader) build(manifest *Manifest) (RuntimeModule, error) {
	mod := &manifestModule{manifest: manifest}

	if manifest.Factory != "" {
		l.mu.RLock()
		factory, ok := l.factories[manifest.Factory]
		l.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: %w: %s", ErrInvalidModule, ErrUnknownFactory, manifest.Factory)
		}
		inner, err := factory(*manifest.copy())
		if err != nil {
			return nil, fmt.Errorf("%w: factory %s: %v", ErrInvalidModule, manifest.Factory, err)
		}
		if inner == nil {
			return nil, fmt.Errorf("%w: factory %s returned no module", ErrInvalidModule, manifest.Factory)
		}
		mod.inner = inner
	}

	mod.routes = make([]RouteDefinition, 0, len(manifest.Routes))
	for _, r := range manifest.Routes {
		h, err := handlers.Build(r.Handler)
		if err != nil {
			return nil, fmt.Errorf("%w: route %q: %v", ErrInvalidModule, r.ID, err)
		}
		mod.routes = append(mod.routes, RouteDefinition{
			ID:      r.ID,
			Method:  strings.ToUpper(r.Method),
			Path:    r.Path,
			Handler: h,
		})
	}
	return mod, nil
}

func (l *FileLoader) cached(digest string) *Manifest {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	el, ok := l.cache[digest]
	if !ok {
		return nil
	}
	l.order.MoveToFront(el)
	return el.Value.(*cacheEntry).manifest
}

func (l *FileLoader) store(digest string, m *Manifest) {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	if el, ok := l.cache[digest]; ok {
		l.order.MoveToFront(el)
		return
	}
	l.cache[digest] = l.order.PushFront(&cacheEntry{digest: digest, manifest: m})
	for l.order.Len() > l.cacheSize {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.cache, oldest.Value.(*cacheEntry).digest)
	}
}

// CachedManifests returns the number of parsed manifests held in the cache.
func (l *FileLoader) CachedManifests() int {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	return l.order.Len()
}
