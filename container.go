package hotmod

import (
	"fmt"
	"sort"
	"sync"
)

// Container is a simple dependency container shared by all modules of a
// kernel. Modules use it to hand services to each other across reloads.
type Container interface {
	// Register stores value under name. Registering an existing name fails
	// with ErrServiceAlreadyRegistered; use Replace to overwrite.
	Register(name string, value any) error

	// Replace stores value under name, overwriting any previous value.
	Replace(name string, value any) error

	// Get returns the value stored under name.
	Get(name string) (any, bool)

	// Remove deletes name from the container. Removing an unknown name is a no-op.
	Remove(name string)

	// Names lists registered service names in sorted order.
	Names() []string
}

// ServiceContainer is the default Container implementation.
type ServiceContainer struct {
	mu       sync.RWMutex
	services map[string]any
}

// NewServiceContainer creates an empty container.
func NewServiceContainer() *ServiceContainer {
	return &ServiceContainer{services: make(map[string]any)}
}

// Register implements Container.
func (c *ServiceContainer) Register(name string, value any) error {
	if name == "" {
		return ErrServiceNameEmpty
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.services[name]; exists {
		return fmt.Errorf("%w: %s", ErrServiceAlreadyRegistered, name)
	}
	c.services[name] = value
	return nil
}

// Replace implements Container.
func (c *ServiceContainer) Replace(name string, value any) error {
	if name == "" {
		return ErrServiceNameEmpty
	}
	c.mu.Lock()
	c.services[name] = value
	c.mu.Unlock()
	return nil
}

// Get implements Container.
func (c *ServiceContainer) Get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.services[name]
	return v, ok
}

// Remove implements Container.
func (c *ServiceContainer) Remove(name string) {
	c.mu.Lock()
	delete(c.services, name)
	c.mu.Unlock()
}

// Names implements Container.
func (c *ServiceContainer) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}
