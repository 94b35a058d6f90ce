// Package registry provides a name-keyed service registry with abstract
// factory fallback.
//
// Concrete services are registered once under a unique name. When a lookup
// misses every concrete registration, the registry asks each abstract factory,
// in the order they were added, whether it can build the requested name.
package registry

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/leeforge/logkit/errors"
)

// ConfigService is the name under which the global configuration is registered.
const ConfigService = "Config"

// Locator is the read side of the registry handed to abstract factories.
type Locator interface {
	Has(name string) bool
	Get(name string) (any, error)
	// GlobalConfig returns the registered global configuration, if any.
	GlobalConfig() (map[string]any, bool)
}

// AbstractFactory builds services for names that have no concrete
// registration. CanCreate must be cheap and free of side effects.
type AbstractFactory interface {
	CanCreate(services Locator, name string) bool
	CreateService(services Locator, name string) (any, error)
}

// SettingsSource is a configuration object that can export its full tree,
// such as *config.Config or *viper.Viper.
type SettingsSource interface {
	AllSettings() map[string]any
}

// ServiceRegistry stores named services and delegates misses to abstract factories.
type ServiceRegistry struct {
	services  map[string]any
	factories []AbstractFactory
	mu        sync.RWMutex
}

// New creates an empty service registry.
func New() *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]any),
	}
}

// Register stores a service. Returns error if key already exists.
func (sr *ServiceRegistry) Register(key string, svc any) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if _, exists := sr.services[key]; exists {
		return apperrors.NewConflict("service", key)
	}
	sr.services[key] = svc
	return nil
}

// MustRegister stores a service, panicking on duplicate.
func (sr *ServiceRegistry) MustRegister(key string, svc any) {
	if err := sr.Register(key, svc); err != nil {
		panic(err)
	}
}

// AddAbstractFactory appends a fallback factory.
func (sr *ServiceRegistry) AddAbstractFactory(f AbstractFactory) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.factories = append(sr.factories, f)
}

// Has reports whether key is registered or can be built by an abstract factory.
func (sr *ServiceRegistry) Has(key string) bool {
	if _, ok := sr.lookup(key); ok {
		return true
	}
	for _, f := range sr.abstractFactories() {
		if f.CanCreate(sr, key) {
			return true
		}
	}
	return false
}

// Get returns the service registered under key. Abstract factories are only
// consulted on a miss; a not-found error from one factory moves on to the
// next, any other error is returned as is. A factory that asks for a name
// already being built on its own call chain gets a conflict error.
func (sr *ServiceRegistry) Get(key string) (any, error) {
	return sr.get(key, nil)
}

func (sr *ServiceRegistry) get(key string, chain []string) (any, error) {
	if svc, ok := sr.lookup(key); ok {
		return svc, nil
	}

	if slices.Contains(chain, key) {
		return nil, apperrors.New(apperrors.ErrorTypeConflict,
			fmt.Sprintf("circular service reference: %s -> %s", strings.Join(chain, " -> "), key)).
			WithDetail("service", key)
	}
	scope := &resolution{sr: sr, chain: append(slices.Clone(chain), key)}

	for _, f := range sr.abstractFactories() {
		if !f.CanCreate(scope, key) {
			continue
		}
		svc, err := f.CreateService(scope, key)
		if apperrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create service %q: %w", key, err)
		}
		return svc, nil
	}

	return nil, apperrors.NewNotFound("service", key)
}

// resolution is the Locator handed to factories while chain is being built.
type resolution struct {
	sr    *ServiceRegistry
	chain []string
}

func (r *resolution) Has(name string) bool { return r.sr.Has(name) }

func (r *resolution) Get(name string) (any, error) { return r.sr.get(name, r.chain) }

func (r *resolution) GlobalConfig() (map[string]any, bool) { return r.sr.GlobalConfig() }

// GlobalConfig returns the concrete ConfigService as a settings tree.
// Abstract factories are never asked, so a factory reading configuration
// cannot recurse into itself.
func (sr *ServiceRegistry) GlobalConfig() (map[string]any, bool) {
	svc, ok := sr.lookup(ConfigService)
	if !ok {
		return nil, false
	}

	switch cfg := svc.(type) {
	case map[string]any:
		return cfg, true
	case SettingsSource:
		return cfg.AllSettings(), true
	default:
		return nil, false
	}
}

// Keys returns all concrete service keys, sorted alphabetically.
func (sr *ServiceRegistry) Keys() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	keys := make([]string, 0, len(sr.services))
	for k := range sr.services {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (sr *ServiceRegistry) lookup(key string) (any, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	svc, ok := sr.services[key]
	return svc, ok
}

// abstractFactories snapshots the factory list so no lock is held while
// factories call back into the registry.
func (sr *ServiceRegistry) abstractFactories() []AbstractFactory {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return append([]AbstractFactory(nil), sr.factories...)
}

// Resolve retrieves a service with compile-time type safety via generics.
func Resolve[T any](l Locator, key string) (T, error) {
	var zero T
	svc, err := l.Get(key)
	if err != nil {
		return zero, err
	}

	typed, ok := svc.(T)
	if !ok {
		return zero, apperrors.New(apperrors.ErrorTypeInvalid,
			fmt.Sprintf("service %q is %T, want %T", key, svc, zero)).WithDetail("service", key)
	}
	return typed, nil
}

// MustResolve retrieves a service, panicking if not found or wrong type.
func MustResolve[T any](l Locator, key string) T {
	svc, err := Resolve[T](l, key)
	if err != nil {
		panic(err)
	}
	return svc
}

var _ Locator = (*ServiceRegistry)(nil)
