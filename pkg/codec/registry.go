package codec

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"firestige.xyz/aptx/internal/core"
)

// Registry holds codec descriptors keyed by case-insensitive name.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]*Descriptor
}

func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[string]*Descriptor),
	}
}

func (r *Registry) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(d.Name)
	if _, exists := r.codecs[key]; exists {
		return fmt.Errorf("%w: %s", core.ErrCodecAlreadyRegistered, d.Name)
	}
	r.codecs[key] = d
	return nil
}

func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codecs, strings.ToLower(name))
}

func (r *Registry) Get(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, exists := r.codecs[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrCodecNotFound, name)
	}
	return d, nil
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Descriptor, 0, len(r.codecs))
	for _, d := range r.codecs {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Reset removes every descriptor. Intended for tests.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs = make(map[string]*Descriptor)
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

func Register(d *Descriptor) error { return defaultRegistry.Register(d) }

func Unregister(name string) { defaultRegistry.Unregister(name) }

func Get(name string) (*Descriptor, error) { return defaultRegistry.Get(name) }

func List() []*Descriptor { return defaultRegistry.List() }
