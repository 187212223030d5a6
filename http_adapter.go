package hotmod

import "net/http"

// HTTP methods accepted for module routes.
const (
	MethodGet    = http.MethodGet
	MethodPost   = http.MethodPost
	MethodPut    = http.MethodPut
	MethodDelete = http.MethodDelete
	MethodPatch  = http.MethodPatch
)

// SupportedMethod reports whether method may be used in a RouteDefinition.
func SupportedMethod(method string) bool {
	switch method {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return true
	}
	return false
}

// RouteDefinition declares one HTTP endpoint owned by a module.
type RouteDefinition struct {
	// ID is chosen by the module author and must be unique across all
	// currently registered routes. It is the key used to remove the route.
	ID string

	// Method is one of GET, POST, PUT, DELETE, PATCH.
	Method string

	// Path is the router pattern, e.g. "/users/{id}".
	Path string

	// Handler serves requests for the route.
	Handler http.Handler
}

// HTTPAdapter is the route dispatch layer the kernel drives.
// The adapter is the authority on route uniqueness; the kernel only tracks
// which module owns which route identifier. Errors returned by the adapter
// are passed through to kernel callers unmodified.
type HTTPAdapter interface {
	// RegisterRoute installs a live handler at Method+Path.
	RegisterRoute(def RouteDefinition) error

	// UnregisterRoute removes a previously installed handler by id.
	UnregisterRoute(id string) error
}
