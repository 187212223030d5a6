package hotmod

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/hotmod/monitoring"
)

var (
	errTestRegister = errors.New("register exploded")
	errTestDispose  = errors.New("dispose exploded")
	errTestTeardown = errors.New("adapter refused")
)

func TestNewKernelRequiresAdapter(t *testing.T) {
	k, err := NewKernel(nil)
	require.ErrorIs(t, err, ErrNilAdapter)
	assert.Nil(t, k)
}

func TestNewKernelDefaults(t *testing.T) {
	k, err := NewKernel(newRecordingAdapter())
	require.NoError(t, err)
	assert.IsType(t, &FileLoader{}, k.Loader())
	assert.NotNil(t, k.Container())
	assert.Equal(t, monitoring.DefaultHistoryLimit, k.Monitor().Limit())
}

func TestKernelLoad(t *testing.T) {
	t.Run("should_register_all_declared_routes", func(t *testing.T) {
		loader := newMapLoader()
		loader.add("user.yaml", &testModule{name: "user", version: "1.0.0", routes: []string{"list", "get", "create"}})
		k, adapter := newTestKernel(t, loader)

		require.NoError(t, k.Load(context.Background(), "user.yaml"))

		md, ok := k.Get("user")
		require.True(t, ok)
		assert.Equal(t, "user", md.Name())
		assert.Equal(t, "1.0.0", md.Version)
		assert.Equal(t, []string{"list", "get", "create"}, md.RegisteredRoutes)
		assert.Equal(t, pathKey("user.yaml"), md.Path)
		assert.False(t, md.LoadedAt.IsZero())
		assert.Equal(t, []string{"create", "get", "list"}, adapter.live())
	})

	t.Run("should_record_two_successful_builds", func(t *testing.T) {
		loader := newMapLoader()
		loader.add("user.yaml", &testModule{name: "user", version: "1.0.0", routes: []string{"list"}})
		k, _ := newTestKernel(t, loader)

		require.NoError(t, k.Load(context.Background(), "user.yaml"))

		builds := k.Monitor().GetBuilds()
		require.Len(t, builds, 2)
		assert.Equal(t, "user", builds[0].ModuleName)
		assert.Equal(t, monitoring.PhaseRegister, builds[0].Phase)
		assert.Equal(t, monitoring.UnknownModule, builds[1].ModuleName)
		assert.Equal(t, monitoring.PhaseResolve, builds[1].Phase)
		for _, b := range builds {
			assert.Equal(t, monitoring.StatusSuccess, b.Status)
			assert.NotNil(t, b.EndTime)
			assert.Empty(t, b.Error)
		}

		active := k.Monitor().GetActiveModules()
		require.Len(t, active, 1)
		assert.Equal(t, 1, active[0].RouteCount)
	})

	t.Run("should_report_loader_errors_without_touching_the_registry", func(t *testing.T) {
		loader := newMapLoader()
		k, adapter := newTestKernel(t, loader)

		err := k.Load(context.Background(), "missing.yaml")
		require.ErrorIs(t, err, errTestLoaderMissing)
		assert.Empty(t, k.List())
		assert.Empty(t, adapter.entries())

		builds := k.Monitor().GetBuilds()
		require.Len(t, builds, 1)
		assert.Equal(t, monitoring.StatusError, builds[0].Status)
		assert.Contains(t, builds[0].Error, "missing.yaml")
	})

	t.Run("should_reject_nil_and_nameless_modules", func(t *testing.T) {
		loader := LoaderFunc(func(ctx context.Context, path string) (RuntimeModule, error) {
			if path == "nil.yaml" {
				return nil, nil
			}
			return &testModule{name: " ", version: "1"}, nil
		})
		k, _ := newTestKernel(t, loader)

		err := k.Load(context.Background(), "nil.yaml")
		require.ErrorIs(t, err, ErrInvalidModule)
		require.ErrorIs(t, err, ErrNilModule)

		err = k.Load(context.Background(), "blank.yaml")
		require.ErrorIs(t, err, ErrInvalidModule)
		assert.Empty(t, k.List())
	})

	t.Run("should_recover_from_loader_panics", func(t *testing.T) {
		loader := LoaderFunc(func(ctx context.Context, path string) (RuntimeModule, error) {
			panic("corrupt artifact")
		})
		k, _ := newTestKernel(t, loader)

		err := k.Load(context.Background(), "bad.yaml")
		require.ErrorIs(t, err, ErrInvalidModule)
		assert.Contains(t, err.Error(), "corrupt artifact")
		assert.Equal(t, monitoring.StatusError, k.Monitor().GetBuilds()[0].Status)
	})
}

func TestKernelRegistrationFailure(t *testing.T) {
	t.Run("should_surface_register_error_and_roll_back_routes", func(t *testing.T) {
		loader := newMapLoader()
		mod := &testModule{name: "orders", version: "2", routes: []string{"a", "b", "c"}, registerErr: errTestRegister, failAfter: 2}
		loader.add("orders.yaml", mod)
		k, adapter := newTestKernel(t, loader)

		err := k.Load(context.Background(), "orders.yaml")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRegistrationFailed)
		assert.ErrorIs(t, err, errTestRegister)

		_, ok := k.Get("orders")
		assert.False(t, ok)
		assert.Empty(t, adapter.live())
		assert.Equal(t, []string{"+a", "+b", "-b", "-a"}, adapter.entries())
		assert.Zero(t, mod.disposeCount())

		builds := k.Monitor().GetBuilds()
		require.Len(t, builds, 2)
		assert.Equal(t, "orders", builds[0].ModuleName)
		assert.Equal(t, monitoring.StatusError, builds[0].Status)
		assert.Contains(t, builds[0].Error, "register exploded")
		assert.Equal(t, monitoring.StatusSuccess, builds[1].Status)
		assert.Empty(t, k.Monitor().GetActiveModules())
	})

	t.Run("should_convert_register_panics_into_errors", func(t *testing.T) {
		loader := newMapLoader()
		loader.add("p.yaml", &testModule{name: "p", version: "1", routes: []string{"x"}, panicMessage: "boom", failAfter: 1})
		k, adapter := newTestKernel(t, loader)

		err := k.Load(context.Background(), "p.yaml")
		require.ErrorIs(t, err, ErrRegistrationFailed)
		assert.Contains(t, err.Error(), "boom")
		assert.Empty(t, k.List())
		assert.Empty(t, adapter.live())
		assert.Equal(t, monitoring.StatusError, k.Monitor().GetBuilds()[0].Status)
	})

	t.Run("should_pass_adapter_errors_through", func(t *testing.T) {
		loader := newMapLoader()
		loader.add("dup.yaml", &testModule{name: "dup", version: "1", routes: []string{"ok", "taken"}})
		k, adapter := newTestKernel(t, loader)
		adapter.failRegister["taken"] = errTestRouteExists

		err := k.Load(context.Background(), "dup.yaml")
		require.ErrorIs(t, err, errTestRouteExists)
		assert.ErrorIs(t, err, ErrRegistrationFailed)
		assert.Empty(t, adapter.live())
		assert.Equal(t, 1, adapter.unregistered("ok"))
		assert.Zero(t, adapter.unregistered("taken"))
	})
}

func TestKernelReload(t *testing.T) {
	t.Run("should_tear_down_previous_instance_before_registering", func(t *testing.T) {
		loader := newMapLoader()
		k, adapter := newTestKernel(t, loader)
		v1 := &testModule{name: "user", version: "1", routes: []string{"r1", "r2"}, journal: adapter}
		v2 := &testModule{name: "user", version: "2", routes: []string{"r3"}, journal: adapter}
		loader.add("user.yaml", v1, v2)

		require.NoError(t, k.Load(context.Background(), "user.yaml"))
		require.NoError(t, k.Reload(context.Background(), "user.yaml"))

		assert.Equal(t, 1, v1.disposeCount())
		assert.Zero(t, v2.disposeCount())
		assert.Equal(t, []string{"+r1", "+r2", "dispose:user@1", "-r1", "-r2", "+r3"}, adapter.entries())

		md, ok := k.Get("user")
		require.True(t, ok)
		assert.Equal(t, "2", md.Version)
		assert.Equal(t, []string{"r3"}, md.RegisteredRoutes)
		assert.Len(t, k.List(), 1)
	})

	t.Run("should_round_trip_shared_route_ids", func(t *testing.T) {
		loader := newMapLoader()
		loader.add("m.yaml",
			&testModule{name: "m", version: "1", routes: []string{"a", "b"}},
			&testModule{name: "m", version: "2", routes: []string{"a", "c"}},
		)
		k, adapter := newTestKernel(t, loader)

		require.NoError(t, k.Load(context.Background(), "m.yaml"))
		require.NoError(t, k.Reload(context.Background(), "m.yaml"))

		assert.Equal(t, []string{"a", "c"}, adapter.live())
		assert.Equal(t, 1, adapter.unregistered("a"))
		assert.Equal(t, 1, adapter.unregistered("b"))
		assert.Zero(t, adapter.unregistered("c"))

		md, _ := k.Get("m")
		assert.Equal(t, []string{"a", "c"}, md.RegisteredRoutes)
	})

	t.Run("should_leave_name_unregistered_when_new_version_fails", func(t *testing.T) {
		loader := newMapLoader()
		v1 := &testModule{name: "svc", version: "1", routes: []string{"x"}}
		loader.add("svc.yaml", v1, &testModule{name: "svc", version: "2", routes: []string{"y"}, registerErr: errTestRegister, failAfter: 1})
		k, adapter := newTestKernel(t, loader)

		require.NoError(t, k.Load(context.Background(), "svc.yaml"))
		err := k.Reload(context.Background(), "svc.yaml")
		require.ErrorIs(t, err, errTestRegister)

		assert.Equal(t, 1, v1.disposeCount())
		_, ok := k.Get("svc")
		assert.False(t, ok)
		assert.Empty(t, adapter.live())
	})

	t.Run("should_continue_when_previous_teardown_fails", func(t *testing.T) {
		loader := newMapLoader()
		loader.add("svc.yaml",
			&testModule{name: "svc", version: "1", routes: []string{"old"}, disposeErr: errTestDispose},
			&testModule{name: "svc", version: "2", routes: []string{"new"}},
		)
		k, adapter := newTestKernel(t, loader)

		require.NoError(t, k.Load(context.Background(), "svc.yaml"))
		adapter.failUnregister["old"] = errTestTeardown
		require.NoError(t, k.Reload(context.Background(), "svc.yaml"))

		md, ok := k.Get("svc")
		require.True(t, ok)
		assert.Equal(t, "2", md.Version)
		assert.Equal(t, []string{"new"}, md.RegisteredRoutes)

		active := k.Monitor().GetActiveModules()
		require.Len(t, active, 1)
		assert.Equal(t, monitoring.ModuleError, active[0].Status, "stale routes of the old instance are still live")

		require.NoError(t, k.Reload(context.Background(), "svc.yaml"))
		active = k.Monitor().GetActiveModules()
		require.Len(t, active, 1)
		assert.Equal(t, monitoring.ModuleActive, active[0].Status)
	})
}

func TestKernelUnload(t *testing.T) {
	t.Run("should_dispose_once_and_remove_routes", func(t *testing.T) {
		loader := newMapLoader()
		mod := &testModule{name: "cart", version: "1", routes: []string{"view", "add"}}
		loader.add("cart.yaml", mod)
		k, adapter := newTestKernel(t, loader)

		require.NoError(t, k.Load(context.Background(), "cart.yaml"))
		require.NoError(t, k.Unload(context.Background(), "cart"))

		assert.Equal(t, 1, mod.disposeCount())
		assert.Empty(t, adapter.live())
		assert.Empty(t, k.List())
		assert.Empty(t, k.Monitor().GetActiveModules())

		require.NoError(t, k.Unload(context.Background(), "cart"))
		assert.Equal(t, 1, mod.disposeCount())
	})

	t.Run("should_ignore_unknown_names", func(t *testing.T) {
		k, adapter := newTestKernel(t, newMapLoader())
		require.NoError(t, k.Unload(context.Background(), "ghost"))
		assert.Empty(t, adapter.entries())
		assert.Empty(t, k.Monitor().GetBuilds())
	})

	t.Run("should_tear_down_routes_when_dispose_fails", func(t *testing.T) {
		loader := newMapLoader()
		mod := &testModule{name: "cart", version: "1", routes: []string{"view"}, disposeErr: errTestDispose}
		loader.add("cart.yaml", mod)
		k, adapter := newTestKernel(t, loader)

		require.NoError(t, k.Load(context.Background(), "cart.yaml"))
		require.NoError(t, k.Unload(context.Background(), "cart"))
		assert.Empty(t, adapter.live())
		assert.Empty(t, k.List())
	})

	t.Run("should_recover_from_dispose_panics", func(t *testing.T) {
		loader := LoaderFunc(func(ctx context.Context, path string) (RuntimeModule, error) {
			return &panickyDisposer{testModule{name: "p", version: "1", routes: []string{"r"}}}, nil
		})
		k, adapter := newTestKernel(t, loader)

		require.NoError(t, k.Load(context.Background(), "p.yaml"))
		require.NoError(t, k.Unload(context.Background(), "p"))
		assert.Empty(t, adapter.live())
	})

	t.Run("should_return_joined_teardown_errors_and_still_remove_module", func(t *testing.T) {
		loader := newMapLoader()
		loader.add("cart.yaml", &testModule{name: "cart", version: "1", routes: []string{"a", "b", "c"}})
		k, adapter := newTestKernel(t, loader)

		require.NoError(t, k.Load(context.Background(), "cart.yaml"))
		adapter.failUnregister["a"] = errTestTeardown
		adapter.failUnregister["c"] = errTestTeardown

		err := k.Unload(context.Background(), "cart")
		require.ErrorIs(t, err, errTestTeardown)
		assert.Contains(t, err.Error(), `"a"`)
		assert.Contains(t, err.Error(), `"c"`)
		assert.Equal(t, 1, adapter.unregistered("b"))
		_, ok := k.Get("cart")
		assert.False(t, ok)
	})

	t.Run("should_unload_everything", func(t *testing.T) {
		loader := newMapLoader()
		loader.add("a.yaml", &testModule{name: "a", version: "1", routes: []string{"a"}})
		loader.add("b.yaml", &testModule{name: "b", version: "1", routes: []string{"b"}})
		k, adapter := newTestKernel(t, loader)

		require.NoError(t, k.Load(context.Background(), "a.yaml"))
		require.NoError(t, k.Load(context.Background(), "b.yaml"))
		require.NoError(t, k.UnloadAll(context.Background()))
		assert.Empty(t, k.List())
		assert.Empty(t, adapter.live())
	})

	t.Run("should_unload_by_path_only_when_path_still_backs_the_name", func(t *testing.T) {
		loader := newMapLoader()
		first := &testModule{name: "a", version: "1", routes: []string{"r1"}}
		second := &testModule{name: "a", version: "2", routes: []string{"r2"}}
		loader.add("a1.yaml", first)
		loader.add("a2.yaml", second)
		k, adapter := newTestKernel(t, loader)

		require.NoError(t, k.Load(context.Background(), "a1.yaml"))
		require.NoError(t, k.Load(context.Background(), "a2.yaml"))

		name, err := k.UnloadPath(context.Background(), "a1.yaml")
		require.NoError(t, err)
		assert.Empty(t, name)
		md, ok := k.Get("a")
		require.True(t, ok)
		assert.Equal(t, "2", md.Version)
		assert.Equal(t, 0, second.disposeCount())

		name, err = k.UnloadPath(context.Background(), "a2.yaml")
		require.NoError(t, err)
		assert.Equal(t, "a", name)
		assert.Equal(t, 1, second.disposeCount())
		assert.Empty(t, adapter.live())

		name, err = k.UnloadPath(context.Background(), "ghost.yaml")
		require.NoError(t, err)
		assert.Empty(t, name)
	})
}

type panickyDisposer struct {
	testModule
}

func (p *panickyDisposer) Dispose() error {
	panic("dispose blew up")
}

func TestKernelBuildHistory(t *testing.T) {
	t.Run("should_cap_history_with_fifo_eviction", func(t *testing.T) {
		loader := LoaderFunc(func(ctx context.Context, path string) (RuntimeModule, error) {
			return &testModule{name: path, version: "1"}, nil
		})
		k, _ := newTestKernel(t, loader)

		// Each load writes a resolve record and a register record, so only the
		// last DefaultHistoryLimit/2 loads survive.
		loads := monitoring.DefaultHistoryLimit + 50
		for i := 0; i < loads; i++ {
			require.NoError(t, k.Load(context.Background(), fmt.Sprintf("m-%03d", i)))
		}

		builds := k.Monitor().GetBuilds()
		require.Len(t, builds, monitoring.DefaultHistoryLimit)
		for _, b := range builds {
			assert.True(t, b.Terminal(), "build %s still building", b.ID)
		}
		last := fmt.Sprintf("m-%03d", loads-1)
		assert.Equal(t, last, builds[0].ModuleName)

		// Oldest retained record is the resolve phase of the first load that still fits.
		first := loads - monitoring.DefaultHistoryLimit/2
		oldest := builds[len(builds)-1]
		assert.Equal(t, monitoring.PhaseResolve, oldest.Phase)
		assert.Equal(t, fmt.Sprintf("m-%03d", first), oldest.ModulePath)
	})

	t.Run("should_honor_custom_history_limit", func(t *testing.T) {
		loader := LoaderFunc(func(ctx context.Context, path string) (RuntimeModule, error) {
			return &testModule{name: "same", version: path}, nil
		})
		k, _ := newTestKernel(t, loader, WithHistoryLimit(5))
		for i := 0; i < 10; i++ {
			require.NoError(t, k.Load(context.Background(), fmt.Sprintf("v%d", i)))
		}
		assert.Len(t, k.Monitor().GetBuilds(), 5)
		assert.Len(t, k.List(), 1)
	})

	t.Run("should_use_supplied_monitor", func(t *testing.T) {
		mon := monitoring.NewMonitor(monitoring.WithHistoryLimit(3))
		k, _ := newTestKernel(t, newMapLoader(), WithMonitor(mon), WithHistoryLimit(50))
		assert.Same(t, mon, k.Monitor())
		assert.Equal(t, 3, k.Monitor().Limit())
	})
}

func TestKernelConcurrency(t *testing.T) {
	t.Run("should_serialize_concurrent_loads_of_one_name", func(t *testing.T) {
		loader := LoaderFunc(func(ctx context.Context, path string) (RuntimeModule, error) {
			return &testModule{
				name:    "svc",
				version: path,
				routes:  []string{path + "-a", path + "-b"},
			}, nil
		})
		k, adapter := newTestKernel(t, loader)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, k.Load(context.Background(), fmt.Sprintf("v%02d", i)))
			}(i)
		}
		wg.Wait()

		list := k.List()
		require.Len(t, list, 1)
		md := list[0]
		assert.Equal(t, []string{md.Version + "-a", md.Version + "-b"}, md.RegisteredRoutes)
		assert.Equal(t, []string{md.Version + "-a", md.Version + "-b"}, adapter.live())
		for _, b := range k.Monitor().GetBuilds() {
			assert.Equal(t, monitoring.StatusSuccess, b.Status)
		}
	})

	t.Run("should_not_block_other_names", func(t *testing.T) {
		started := make(chan struct{})
		unblock := make(chan struct{})
		loader := newMapLoader()
		loader.add("slow.yaml", &testModule{name: "slow", version: "1", routes: []string{"s"}, beforeReg: func() {
			close(started)
			<-unblock
		}})
		loader.add("fast.yaml", &testModule{name: "fast", version: "1", routes: []string{"f"}})
		k, _ := newTestKernel(t, loader)

		done := make(chan error, 1)
		go func() { done <- k.Load(context.Background(), "slow.yaml") }()
		<-started

		require.NoError(t, k.Load(context.Background(), "fast.yaml"))
		_, ok := k.Get("fast")
		assert.True(t, ok)
		_, ok = k.Get("slow")
		assert.False(t, ok)

		close(unblock)
		require.NoError(t, <-done)
		assert.Len(t, k.List(), 2)
	})

	t.Run("should_abandon_queued_load_when_context_ends", func(t *testing.T) {
		started := make(chan struct{})
		unblock := make(chan struct{})
		loader := newMapLoader()
		loader.add("slow.yaml",
			&testModule{name: "slow", version: "1", routes: []string{"s"}, beforeReg: func() {
				close(started)
				<-unblock
			}},
			&testModule{name: "slow", version: "2", routes: []string{"s2"}},
		)
		k, _ := newTestKernel(t, loader)

		first := make(chan error, 1)
		go func() { first <- k.Load(context.Background(), "slow.yaml") }()
		<-started

		ctx, cancel := context.WithCancel(context.Background())
		second := make(chan error, 1)
		go func() { second <- k.Load(ctx, "slow.yaml") }()
		require.Eventually(t, func() bool {
			return k.paths.pending(pathKey("slow.yaml")) == 1
		}, time.Second, 5*time.Millisecond)

		cancel()
		require.ErrorIs(t, <-second, context.Canceled)

		close(unblock)
		require.NoError(t, <-first)
		md, ok := k.Get("slow")
		require.True(t, ok)
		assert.Equal(t, "1", md.Version)

		for _, b := range k.Monitor().GetBuilds() {
			assert.True(t, b.Terminal())
		}
	})

	t.Run("should_finish_registration_after_caller_context_ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		loader := newMapLoader()
		loader.add("m.yaml", &testModule{name: "m", version: "1", routes: []string{"a", "b"}, beforeReg: cancel})
		k, adapter := newTestKernel(t, loader)

		require.NoError(t, k.Load(ctx, "m.yaml"))
		assert.Equal(t, []string{"a", "b"}, adapter.live())
	})
}

func TestKernelEvents(t *testing.T) {
	loader := newMapLoader()
	loader.add("user.yaml", &testModule{name: "user", version: "1", routes: []string{"r"}})
	k, _ := newTestKernel(t, loader)

	var mu sync.Mutex
	var events []cloudevents.Event
	observer := NewFunctionalObserver("recorder", func(ctx context.Context, event cloudevents.Event) error {
		mu.Lock()
		events = append(events, event)
		mu.Unlock()
		return nil
	})
	require.NoError(t, k.RegisterObserver(observer))

	require.NoError(t, k.Load(context.Background(), "user.yaml"))
	require.NoError(t, k.Unload(context.Background(), "user"))
	k.Flush()

	counts := make(map[string]int)
	mu.Lock()
	for _, e := range events {
		counts[e.Type()]++
		assert.Equal(t, EventSource, e.Source())
		if e.Type() == EventTypeModuleLoaded || e.Type() == EventTypeModuleUnloaded {
			assert.Equal(t, "user", e.Subject())
		}
	}
	mu.Unlock()

	assert.Equal(t, 2, counts[EventTypeBuildStarted])
	assert.Equal(t, 2, counts[EventTypeBuildCompleted])
	assert.Equal(t, 1, counts[EventTypeModuleLoaded])
	assert.Equal(t, 1, counts[EventTypeModuleUnloaded])
	assert.Zero(t, counts[EventTypeBuildFailed])
}

func TestKernelLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "name: a\nversion: 1.0.0\nroutes:\n  - id: a-hello\n    method: GET\n    path: /a\n    handler:\n      type: text\n      body: hi\n")
	writeFile(t, filepath.Join(dir, "b.json"), `{"name":"b","version":"1","routes":[{"id":"b-hello","method":"GET","path":"/b","handler":{"type":"json","body":{"ok":true}}}]}`)
	writeFile(t, filepath.Join(dir, "broken.yaml"), "name: broken\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	adapter := newRecordingAdapter()
	k, err := NewKernel(adapter, WithLogger(NoopLogger()))
	require.NoError(t, err)

	err = k.LoadDir(context.Background(), dir)
	require.ErrorIs(t, err, ErrInvalidModule)
	assert.Contains(t, err.Error(), "broken.yaml")

	names := make([]string, 0)
	for _, md := range k.List() {
		names = append(names, md.Name())
	}
	assert.Equal(t, []string{"a", "b"}, names)
	assert.Equal(t, []string{"a-hello", "b-hello"}, adapter.live())

	md, ok := k.FindByPath(filepath.Join(dir, "a.yaml"))
	require.True(t, ok)
	assert.Equal(t, "a", md.Name())
	_, ok = k.FindByPath(filepath.Join(dir, "broken.yaml"))
	assert.False(t, ok)

	_, err = ManifestFiles(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
