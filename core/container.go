package core

import (
	"fmt"
	"reflect"
	"sync"
)

// Container is the registry components share objects through: the config,
// the logger, the module loader, the dispatcher, the HTTP engine. Keys are
// usually TypeKey values; use Put, Get and Lookup rather than the raw
// methods.
type Container interface {
	Set(key any, val any)
	Get(key any) (any, bool)
	MustGet(key any) any
}

type container struct {
	mu      sync.RWMutex
	objects map[any]any
}

func NewContainer() Container {
	return &container{objects: make(map[any]any)}
}

func (c *container) Set(key, val any) {
	c.mu.Lock()
	c.objects[key] = val
	c.mu.Unlock()
}

func (c *container) Get(key any) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.objects[key]
	return v, ok
}

// MustGet panics when key is missing. A missing dependency is a wiring bug
// found at Configure time.
func (c *container) MustGet(key any) any {
	v, ok := c.Get(key)
	if !ok {
		panic(fmt.Errorf("container: missing dependency %T", key))
	}
	return v
}

// TypeKey keys an object by its static type.
type TypeKey[T any] struct{}

func Put[T any](c Container, v T) { c.Set(TypeKey[T]{}, v) }

// Get returns the T stored with Put and panics if there is none.
func Get[T any](c Container) T {
	raw := c.MustGet(TypeKey[T]{})
	v, ok := raw.(T)
	if !ok {
		panic(fmt.Errorf("container: %T stored under %v", raw, reflect.TypeFor[T]()))
	}
	return v
}

// Lookup is Get without the panic: ok is false when T is missing.
func Lookup[T any](c Container) (T, bool) {
	raw, ok := c.Get(TypeKey[T]{})
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}
