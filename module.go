// Package hotmod provides a live module-management kernel for Go HTTP hosts.
// It loads self-contained feature units ("modules") into a running process,
// exposes the HTTP routes they declare, and allows a module to be atomically
// replaced without restarting the host or disturbing routes owned by other
// modules.
//
// A module is described by a manifest artifact on disk. The kernel resolves
// the artifact through a Loader, hands the module a per-call RuntimeContext
// so it can declare routes, and records which route identifiers it produced
// so that a later unload can reverse everything the load did.
//
// Basic usage:
//
//	adapter := chimux.NewAdapter()
//	kernel, err := hotmod.NewKernel(adapter, hotmod.WithLogger(slog.Default()))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := kernel.Load(ctx, "modules/user.yaml"); err != nil {
//		log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", adapter)
package hotmod

import "time"

// RuntimeModule represents a loadable unit of registration logic.
// All modules must implement this interface to be managed by the kernel.
//
// A module is registered as a whole: every route it declares during
// Register belongs to it and is removed again when the module is unloaded
// or replaced by a newer instance of the same name.
type RuntimeModule interface {
	// Name returns the stable logical identifier of the module.
	// It must be unique across concurrently registered modules; loading a
	// module whose name is already active replaces the active instance.
	//
	// Example: "user", "product", "billing"
	Name() string

	// Version returns an opaque version string. It is informational only,
	// no ordering or compatibility rules are applied to it.
	Version() string

	// Register declares the module's routes through the runtime context.
	// This is the only way a module may install routes. Returning an error
	// (or panicking) aborts the load; any routes already installed during
	// this call are removed again and no registry entry is created.
	Register(rc *RuntimeContext) error
}

// Disposable is an optional interface for modules that hold resources.
// Dispose is invoked exactly once, immediately before the module's routes
// are unregistered. Errors are logged and never block route teardown.
type Disposable interface {
	Dispose() error
}

// ModuleMetadata describes the currently active instance of a module.
// The registry owns one ModuleMetadata per active module name.
type ModuleMetadata struct {
	// Module is the active module instance.
	Module RuntimeModule `json:"-"`

	// Version is the version reported by Module at registration time.
	Version string `json:"version"`

	// RegisteredRoutes lists, in declaration order, the route identifiers
	// produced by the module's last Register call.
	RegisteredRoutes []string `json:"registeredRoutes"`

	// LoadedAt is the time the module was committed to the registry.
	LoadedAt time.Time `json:"loadedAt"`

	// Path is the artifact path the module was resolved from.
	Path string `json:"path"`
}

// Name returns the name of the active module.
func (m *ModuleMetadata) Name() string {
	if m == nil || m.Module == nil {
		return ""
	}
	return m.Module.Name()
}

func (m *ModuleMetadata) clone() *ModuleMetadata {
	if m == nil {
		return nil
	}
	cp := *m
	cp.RegisteredRoutes = append([]string(nil), m.RegisteredRoutes...)
	return &cp
}
