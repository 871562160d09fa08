// Package catalog maps function names to task functions so work can be
// submitted by name from the CLI or over HTTP.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/seantiz/parxe/internal/task"
)

// ErrUnknownFunction is returned by Lookup for names that were never registered.
var ErrUnknownFunction = errors.New("unknown function")

// Entry describes a registered function.
type Entry struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Func        task.Func `json:"-"`
}

// Catalog is a set of named task functions.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{entries: make(map[string]Entry)}
}

// Register adds fn under name, replacing any previous entry.
func (c *Catalog) Register(name, description string, fn task.Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = Entry{Name: name, Description: description, Func: fn}
}

// Lookup returns the function registered under name.
func (c *Catalog) Lookup(name string) (task.Func, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	return e.Func, nil
}

// List returns all entries sorted by name.
func (c *Catalog) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
