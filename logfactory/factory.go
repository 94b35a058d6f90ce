// Package logfactory builds named loggers from the "log" section of the
// global configuration. It plugs into a registry.ServiceRegistry as an
// abstract factory: a logger name is served when, and only when, it is an
// exact key of that section.
package logfactory

import (
	"maps"
	"strings"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/leeforge/logkit/errors"
	"github.com/leeforge/logkit/logging"
	"github.com/leeforge/logkit/registry"
)

const (
	// DefaultConfigKey is the top-level configuration key holding logger specs.
	DefaultConfigKey = "log"
	// WriterManagerService is the registry name of an optional *logging.WriterManager.
	WriterManagerService = "LogWriterManager"
	// ProcessorManagerService is the registry name of an optional *logging.ProcessorManager.
	ProcessorManagerService = "LogProcessorManager"
)

// Factory creates loggers by name. The logger table is read from the
// registry once and kept for the lifetime of the Factory.
type Factory struct {
	configKey string
	log       *zap.Logger

	mu     sync.Mutex
	loaded bool
	table  map[string]any
}

// Option configures a Factory.
type Option func(*Factory)

// WithConfigKey reads logger specs from key instead of DefaultConfigKey.
func WithConfigKey(key string) Option {
	return func(f *Factory) { f.configKey = key }
}

// WithDiagnostics sends debug diagnostics about configuration loading and
// logger assembly to l.
func WithDiagnostics(l *zap.Logger) Option {
	return func(f *Factory) {
		if l != nil {
			f.log = l
		}
	}
}

// New returns a logger factory reading the DefaultConfigKey subtree of the
// global configuration.
func New(opts ...Option) *Factory {
	f := &Factory{
		configKey: DefaultConfigKey,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ registry.AbstractFactory = (*Factory)(nil)

// Config returns the logger table. The first call reads the global
// configuration; later calls return the cached table even if the
// configuration has changed since. A missing configuration, a missing key or
// a non-mapping value all yield an empty table.
func (f *Factory) Config(services registry.Locator) map[string]any {
	return maps.Clone(f.cached(services))
}

func (f *Factory) load(services registry.Locator) map[string]any {
	global, ok := services.GlobalConfig()
	if !ok {
		f.log.Debug("no global configuration, logger table is empty")
		return map[string]any{}
	}

	table, ok := global[f.configKey].(map[string]any)
	if !ok {
		f.log.Debug("logger configuration missing or not a mapping", zap.String("key", f.configKey))
		return map[string]any{}
	}

	f.log.Debug("logger configuration loaded", zap.String("key", f.configKey), zap.Int("loggers", len(table)))
	return maps.Clone(table)
}

// CanCreate reports whether name is a key of the logger table. Nothing is
// constructed.
func (f *Factory) CanCreate(services registry.Locator, name string) bool {
	table := f.cached(services)
	if len(table) == 0 {
		return false
	}
	_, ok := table[name]
	return ok
}

// cached returns the table itself; callers must not modify it.
func (f *Factory) cached(services registry.Locator) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		f.table = f.load(services)
		f.loaded = true
	}
	return f.table
}

// Create builds a new logger named name. An unknown name is a not-found
// error; errors from building writers or processors are returned unchanged.
func (f *Factory) Create(services registry.Locator, name string) (*logging.Logger, error) {
	raw, ok := f.cached(services)[name]
	if !ok {
		return nil, apperrors.NewNotFound("logger", name)
	}

	cfg, err := logging.DecodeConfig(raw)
	if err != nil {
		return nil, err
	}
	cfg = ResolveReferences(cfg, services)

	opts := []logging.Option{logging.WithName(name)}
	if services.Has(WriterManagerService) {
		wm, err := registry.Resolve[*logging.WriterManager](services, WriterManagerService)
		if err != nil {
			return nil, err
		}
		opts = append(opts, logging.WithWriterManager(wm))
	}
	if services.Has(ProcessorManagerService) {
		pm, err := registry.Resolve[*logging.ProcessorManager](services, ProcessorManagerService)
		if err != nil {
			return nil, err
		}
		opts = append(opts, logging.WithProcessorManager(pm))
	}

	logger, err := logging.New(cfg, opts...)
	if err != nil {
		f.log.Debug("logger construction failed", zap.String("logger", name), zap.Error(err))
		return nil, err
	}

	f.log.Debug("logger created",
		zap.String("logger", name),
		zap.Int("writers", len(cfg.Writers)),
		zap.Int("processors", len(cfg.Processors)),
	)
	return logger, nil
}

// CreateService implements registry.AbstractFactory.
func (f *Factory) CreateService(services registry.Locator, name string) (any, error) {
	logger, err := f.Create(services, name)
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// ResolveReferences replaces the "db" option of every db writer with the
// registered service it names. Values that are not strings, or strings the
// registry does not know, are left as they are. cfg is not modified.
func ResolveReferences(cfg logging.Config, services registry.Locator) logging.Config {
	out := cfg.Clone()
	for i, w := range out.Writers {
		if !strings.EqualFold(w.Name, logging.WriterDB) || w.Options == nil {
			continue
		}
		ref, ok := w.Options["db"].(string)
		if !ok || !services.Has(ref) {
			continue
		}
		svc, err := services.Get(ref)
		if err != nil {
			continue
		}
		out.Writers[i].Options["db"] = svc
	}
	return out
}
