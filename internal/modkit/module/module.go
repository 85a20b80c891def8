// Package module is the contract modules satisfy and the bootstrap registry main wires them through
package module

import (
	"reflect"
	"sort"
	"sync"
)

// Module is what every service module exposes to main
type Module interface {
	Name() string
	// Ports returns the module's port bundle, usually a struct of interfaces
	Ports() any
}

// PortsOf finds a T in m's ports: the bundle itself, or the first exported field
// of a struct (or pointer to struct) bundle that holds one
func PortsOf[T any](m Module) (T, bool) {
	var zero T
	p := m.Ports()
	if p == nil {
		return zero, false
	}
	if v, ok := p.(T); ok {
		return v, true
	}

	rv := reflect.ValueOf(p)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return zero, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return zero, false
	}
	for i := range rv.NumField() {
		f := rv.Field(i)
		if !f.CanInterface() {
			continue
		}
		if v, ok := f.Interface().(T); ok {
			return v, true
		}
	}
	return zero, false
}

// MustPortsOf is PortsOf for bootstrap code; a missing port is a wiring bug
func MustPortsOf[T any](m Module) T {
	v, ok := PortsOf[T](m)
	if !ok {
		panic("module: " + m.Name() + " exposes no " + reflect.TypeFor[T]().String())
	}
	return v
}

var (
	mu  sync.RWMutex
	reg = map[string]any{}
)

// Register records m's ports under its name, replacing any earlier entry
func Register(m Module) {
	mu.Lock()
	defer mu.Unlock()
	reg[m.Name()] = m.Ports()
}

// Lookup returns the ports registered under name as a T
func Lookup[T any](name string) (T, bool) {
	mu.RLock()
	v, ok := reg[name]
	mu.RUnlock()
	t, ok2 := v.(T)
	return t, ok && ok2
}

// Names lists registered modules, sorted
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Reset empties the registry. Tests only
func Reset() {
	mu.Lock()
	reg = map[string]any{}
	mu.Unlock()
}
