package logging

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/text/cases"

	apperrors "github.com/leeforge/logkit/errors"
)

// BuilderFunc constructs a plugin from its options.
type BuilderFunc[T any] func(opts Options) (T, error)

// Manager maps plugin names to builders or ready-made instances. Names are
// compared with Unicode case folding, so "DB", "db" and "Db" are one plugin.
type Manager[T any] struct {
	kind      string
	mu        sync.RWMutex
	builders  map[string]BuilderFunc[T]
	instances map[string]T
}

// WriterManager builds writers by name.
type WriterManager = Manager[Writer]

// ProcessorManager builds processors by name.
type ProcessorManager = Manager[Processor]

// NewManager returns an empty manager; kind is used in error messages.
func NewManager[T any](kind string) *Manager[T] {
	return &Manager[T]{
		kind:      kind,
		builders:  make(map[string]BuilderFunc[T]),
		instances: make(map[string]T),
	}
}

// NewWriterManager returns a manager preloaded with the built-in writers.
func NewWriterManager() *WriterManager {
	m := NewManager[Writer]("log writer")
	m.mustRegister(WriterStream, newStreamWriter)
	m.mustRegister(WriterFile, newFileWriter)
	m.mustRegister(WriterDB, newDBWriter)
	m.mustRegister(WriterRedis, newRedisWriter)
	m.mustRegister(WriterMock, newMockWriter)
	m.mustRegister(WriterNoop, newNoopWriter)
	return m
}

// NewProcessorManager returns a manager preloaded with the built-in processors.
func NewProcessorManager() *ProcessorManager {
	m := NewManager[Processor]("log processor")
	m.mustRegister(ProcessorRequestID, newRequestIDProcessor)
	m.mustRegister(ProcessorReferenceID, newReferenceIDProcessor)
	m.mustRegister(ProcessorContext, newContextProcessor)
	m.mustRegister(ProcessorPID, newPIDProcessor)
	m.mustRegister(ProcessorBacktrace, newBacktraceProcessor)
	m.mustRegister(ProcessorPlaceholder, newPlaceholderProcessor)
	return m
}

func normalizeName(name string) string {
	// A Caser keeps state, so a fresh one is used per call.
	return cases.Fold().String(name)
}

// Register adds a builder. Registering a name twice is an error.
func (m *Manager[T]) Register(name string, b BuilderFunc[T]) error {
	if name == "" {
		return apperrors.NewInvalid("name", name, m.kind+" name cannot be empty")
	}
	if b == nil {
		return apperrors.NewInvalid("builder", name, "builder cannot be nil")
	}

	key := normalizeName(name)
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.builders[key]; exists {
		return apperrors.NewConflict(m.kind, name)
	}
	m.builders[key] = b
	return nil
}

func (m *Manager[T]) mustRegister(name string, b BuilderFunc[T]) {
	if err := m.Register(name, b); err != nil {
		panic(err)
	}
}

// SetInstance registers a ready-made plugin; Build returns it as is and
// ignores the options. It takes precedence over a builder of the same name.
func (m *Manager[T]) SetInstance(name string, v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[normalizeName(name)] = v
}

// Has reports whether name has a registered builder or instance.
func (m *Manager[T]) Has(name string) bool {
	key := normalizeName(name)
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, inst := m.instances[key]
	_, built := m.builders[key]
	return inst || built
}

// Names lists the known (folded) plugin names, sorted.
func (m *Manager[T]) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{}, len(m.builders)+len(m.instances))
	for k := range m.builders {
		seen[k] = struct{}{}
	}
	for k := range m.instances {
		seen[k] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Build returns the instance registered under name, or runs its builder.
// Builder errors are returned unchanged.
func (m *Manager[T]) Build(name string, opts Options) (T, error) {
	var zero T
	if name == "" {
		return zero, apperrors.NewInvalid("name", name, m.kind+" name is required")
	}

	key := normalizeName(name)
	m.mu.RLock()
	inst, hasInst := m.instances[key]
	builder, hasBuilder := m.builders[key]
	m.mu.RUnlock()

	switch {
	case hasInst:
		return inst, nil
	case hasBuilder:
		if opts == nil {
			opts = Options{}
		}
		return builder(opts)
	default:
		return zero, apperrors.New(apperrors.ErrorTypeInvalid, fmt.Sprintf("unknown %s %q", m.kind, name)).
			WithDetail("kind", m.kind).
			WithDetail("name", name)
	}
}
