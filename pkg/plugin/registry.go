package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/aptx/internal/config"
	"firestige.xyz/aptx/internal/core"
	"firestige.xyz/aptx/internal/log"
	"firestige.xyz/aptx/pkg/codec"
)

// Factory creates a module instance.
type Factory func() Module

type moduleRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var modules = &moduleRegistry{factories: make(map[string]Factory)}

// Register makes a module factory available to Load. Registering the same
// name twice panics; it is called from init functions.
func Register(name string, f Factory) {
	modules.mu.Lock()
	defer modules.mu.Unlock()

	if _, exists := modules.factories[name]; exists {
		panic(fmt.Sprintf("plugin: module %q already registered", name))
	}
	modules.factories[name] = f
}

// Names returns the registered module names in sorted order.
func Names() []string {
	modules.mu.RLock()
	defer modules.mu.RUnlock()

	names := make([]string, 0, len(modules.factories))
	for name := range modules.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears all factories. Intended for tests.
func Reset() {
	modules.mu.Lock()
	defer modules.mu.Unlock()
	modules.factories = make(map[string]Factory)
}

// Loaded is the set of initialized modules.
type Loaded struct {
	modules []Module
}

// Load initializes every registered module in name order. On failure the
// modules already initialized are closed again.
func Load(cfg *config.GlobalConfig, reg *codec.Registry) (*Loaded, error) {
	l := &Loaded{}
	for _, name := range Names() {
		modules.mu.RLock()
		f := modules.factories[name]
		modules.mu.RUnlock()

		m := f()
		if err := m.Init(cfg, reg); err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("%w: module %s: %v", core.ErrPluginInitFailed, name, err)
		}
		log.GetLogger().WithField("module", m.Name()).Debugf("loaded %s module", m.Type())
		l.modules = append(l.modules, m)
	}
	return l, nil
}

// Modules returns the initialized modules in load order.
func (l *Loaded) Modules() []Module {
	return l.modules
}

// Close closes the modules in reverse load order.
func (l *Loaded) Close() error {
	var errs []error
	for i := len(l.modules) - 1; i >= 0; i-- {
		if err := l.modules[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("module %s: %w", l.modules[i].Name(), err))
		}
	}
	l.modules = nil
	return errors.Join(errs...)
}
