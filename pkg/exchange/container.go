package exchange

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"marketlink/pkg/core"
)

// Container is a thread-safe registry of adapters keyed by venue name.
// Callers that trade across several venues keep one adapter per venue here so
// that each keeps its own nonce sequence and connection pool.
type Container struct {
	mu        sync.RWMutex
	exchanges map[string]Exchange
}

// NewContainer creates and returns a new empty exchange container.
func NewContainer() *Container {
	return &Container{
		exchanges: make(map[string]Exchange),
	}
}

// Register adds ex under its own name. An adapter already registered under
// that name is replaced and returned so the caller can close it.
func (c *Container) Register(ex Exchange) Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.exchanges[ex.Name()]
	c.exchanges[ex.Name()] = ex
	return prev
}

// Get retrieves an exchange instance by name.
// Returns an error if no exchange is registered with the given name.
func (c *Container) Get(name string) (Exchange, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ex, exists := c.exchanges[name]
	if !exists {
		return nil, fmt.Errorf("exchange %q not found", name)
	}
	return ex, nil
}

// Names returns the registered exchange names in sorted order.
func (c *Container) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.exchanges))
	for name := range c.exchanges {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Supporting returns the names of registered exchanges that offer op on pair.
func (c *Container) Supporting(op core.Operation, pair string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var names []string
	for name, ex := range c.exchanges {
		if ex.Supports(op) && slices.Contains(ex.Pairs(), pair) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Unregister removes an exchange from the container by name.
func (c *Container) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.exchanges, name)
}

// Exists checks whether an exchange with the given name is registered.
func (c *Container) Exists(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.exchanges[name]
	return exists
}

// Close closes every registered exchange and empties the container.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for name, ex := range c.exchanges {
		if err := ex.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	c.exchanges = make(map[string]Exchange)
	return errors.Join(errs...)
}
