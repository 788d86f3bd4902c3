package ext

import (
	"sort"
	"sync"

	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/VM"
	"github.com/sqlvibe/fnvm/internal/log"
)

var (
	mu       sync.RWMutex
	registry = make(map[string]Extension)
	funcMap  = make(map[string]Extension)
)

// Register adds an extension to the global catalog and maps its function
// names. Registering a name again replaces the earlier extension.
func Register(name string, e Extension) {
	mu.Lock()
	defer mu.Unlock()
	if old, ok := registry[name]; ok {
		for _, fn := range old.Functions() {
			delete(funcMap, fn)
		}
	}
	registry[name] = e
	for _, fn := range e.Functions() {
		funcMap[fn] = e
	}
}

// Get returns the named extension, or (nil, false) if not found.
func Get(name string) (Extension, bool) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := registry[name]
	return e, ok
}

// Owner returns the extension providing the function fn.
func Owner(fn string) (Extension, bool) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := funcMap[fn]
	return e, ok
}

// List returns all registered extensions in deterministic name order.
func List() []Extension {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	list := make([]Extension, 0, len(names))
	for _, n := range names {
		list = append(list, registry[n])
	}
	return list
}

// AllFunctions returns all function names from all registered extensions,
// sorted.
func AllFunctions() []string {
	mu.RLock()
	defer mu.RUnlock()
	funcs := make([]string, 0, len(funcMap))
	for fn := range funcMap {
		funcs = append(funcs, fn)
	}
	sort.Strings(funcs)
	return funcs
}

// Install installs the named extensions into b, in the order given.
func Install(b *VM.Builder, names ...string) error {
	for _, name := range names {
		e, ok := Get(name)
		if !ok {
			return svdberr.Errorf(svdberr.SVDB_NOTFOUND, "unknown extension %q", name)
		}
		if err := e.Install(b); err != nil {
			return svdberr.Wrap(svdberr.ErrorCodeOf(err), err, "install extension %s", name)
		}
		log.Debug("installed extension", "ext", name, "functions", len(e.Functions()))
	}
	return nil
}

// InstallAll installs every registered extension into b in name order.
func InstallAll(b *VM.Builder) error {
	list := List()
	names := make([]string, len(list))
	for i, e := range list {
		names[i] = e.Name()
	}
	return Install(b, names...)
}
