package service

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
)

// Sentinel errors for the container.
var (
	// ErrEmptyName is returned when a service is registered without a name.
	ErrEmptyName = errors.New("service name cannot be empty")

	// ErrNilService is returned when a nil service is registered.
	ErrNilService = errors.New("service cannot be nil")

	// ErrDisposed is returned when operating on a disposed container.
	ErrDisposed = errors.New("container is disposed")
)

// Disposer is implemented by services that need teardown on container
// disposal. Services implementing io.Closer are closed the same way.
type Disposer interface {
	Dispose() error
}

// Container is a named service registry with parent fallback.
type Container struct {
	mu       sync.RWMutex
	parent   *Container
	values   map[string]any
	order    []string
	disposed bool
}

// New creates a root container.
func New() *Container {
	return &Container{values: make(map[string]any)}
}

// Child creates a scoped container that resolves through this one.
func (c *Container) Child() *Container {
	return &Container{parent: c, values: make(map[string]any)}
}

// Register stores a service under name. Registering an existing name
// overwrites it (last write wins).
func (c *Container) Register(name string, svc any) error {
	if name == "" {
		return ErrEmptyName
	}
	if svc == nil {
		return ErrNilService
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	if _, exists := c.values[name]; !exists {
		c.order = append(c.order, name)
	}
	c.values[name] = svc
	return nil
}

// Resolve looks up a service by name, walking up the parent chain.
func (c *Container) Resolve(name string) (any, bool) {
	c.mu.RLock()
	svc, ok := c.values[name]
	disposed := c.disposed
	c.mu.RUnlock()

	if disposed {
		return nil, false
	}
	if ok {
		return svc, true
	}
	if c.parent != nil {
		return c.parent.Resolve(name)
	}
	return nil, false
}

// Has reports whether a service is resolvable from this container.
func (c *Container) Has(name string) bool {
	_, ok := c.Resolve(name)
	return ok
}

// Dispose tears down every service registered directly in this
// container, in reverse registration order. Services implementing
// Disposer or io.Closer are closed; the first error is returned after
// all services have been torn down. The parent is untouched.
func (c *Container) Dispose() error {
	return c.DisposeExcept()
}

// DisposeExcept tears down like Dispose but skips services identical to
// one of skip. The caller owns the teardown of skipped services; this
// keeps an object that is both a service and a separately managed
// resource from being disposed twice.
func (c *Container) DisposeExcept(skip ...any) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	c.disposed = true
	values := c.values
	order := c.order
	c.values = make(map[string]any)
	c.order = nil
	c.mu.Unlock()

	var firstErr error
	for i := len(order) - 1; i >= 0; i-- {
		svc := values[order[i]]
		if slices.Contains(skip, svc) {
			continue
		}
		var err error
		switch s := svc.(type) {
		case Disposer:
			err = s.Dispose()
		case io.Closer:
			err = s.Close()
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("dispose %q: %w", order[i], err)
		}
	}
	return firstErr
}
