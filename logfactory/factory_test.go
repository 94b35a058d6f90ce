package logfactory

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/leeforge/logkit/errors"
	"github.com/leeforge/logkit/logging"
	"github.com/leeforge/logkit/registry"
)

// countingLocator records how often the global configuration is read.
type countingLocator struct {
	registry.Locator
	reads atomic.Int32
}

func (c *countingLocator) GlobalConfig() (map[string]any, bool) {
	c.reads.Add(1)
	return c.Locator.GlobalConfig()
}

type fakeExecer struct{}

func (fakeExecer) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, nil
}

func newServices(t *testing.T, settings map[string]any) *registry.ServiceRegistry {
	t.Helper()
	sr := registry.New()
	if settings != nil {
		require.NoError(t, sr.Register(registry.ConfigService, settings))
	}
	return sr
}

func frontendBackend() map[string]any {
	return map[string]any{
		"log": map[string]any{
			"Application.Frontend": map[string]any{
				"writers": []any{map[string]any{"name": "mock"}},
			},
			"Application.Backend": map[string]any{},
		},
	}
}

func TestCanCreateExactNames(t *testing.T) {
	services := newServices(t, frontendBackend())
	f := New()

	for _, name := range []string{"Application.Frontend", "Application.Backend"} {
		assert.True(t, f.CanCreate(services, name), name)
	}
	for _, name := range []string{
		"Application",
		"Application.Frontend.Extra",
		"Logger.Application.Frontend",
		"application.frontend",
		"Application.Backend ",
		"",
	} {
		assert.False(t, f.CanCreate(services, name), name)
	}
}

func TestCanCreateNoHierarchy(t *testing.T) {
	services := newServices(t, map[string]any{"log": map[string]any{"A": map[string]any{}, "B": map[string]any{}}})
	f := New()

	assert.True(t, f.CanCreate(services, "A"))
	assert.True(t, f.CanCreate(services, "B"))
	assert.False(t, f.CanCreate(services, "A.B"))
	assert.False(t, f.CanCreate(services, "Logger.A"))
}

func TestCanCreateIsStableAcrossCreate(t *testing.T) {
	services := newServices(t, frontendBackend())
	f := New()

	assert.True(t, f.CanCreate(services, "Application.Frontend"))
	_, err := f.Create(services, "Application.Frontend")
	require.NoError(t, err)
	assert.True(t, f.CanCreate(services, "Application.Frontend"))
}

func TestCreateUnknownName(t *testing.T) {
	services := newServices(t, frontendBackend())
	f := New()

	logger, err := f.Create(services, "Logger.Application.Frontend")
	assert.Nil(t, logger)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCreateReturnsDistinctLoggers(t *testing.T) {
	services := newServices(t, frontendBackend())
	f := New()

	first, err := f.Create(services, "Application.Frontend")
	require.NoError(t, err)
	second, err := f.Create(services, "Application.Frontend")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	require.Len(t, first.Writers(), 1)
	require.Len(t, second.Writers(), 1)
	assert.NotSame(t, first.Writers()[0], second.Writers()[0])
	assert.Equal(t, "Application.Frontend", first.Name())

	empty, err := f.Create(services, "Application.Backend")
	require.NoError(t, err)
	assert.Empty(t, empty.Writers())
	assert.Empty(t, empty.Processors())
}

func TestCreateNilEntryIsEmptyLogger(t *testing.T) {
	services := newServices(t, map[string]any{"log": map[string]any{"Bare": nil}})
	f := New()

	assert.True(t, f.CanCreate(services, "Bare"))
	logger, err := f.Create(services, "Bare")
	require.NoError(t, err)
	assert.Empty(t, logger.Writers())
}

func dbLoggerConfig() map[string]any {
	return map[string]any{
		"log": map[string]any{
			"Application.Db": map[string]any{
				"writers": []any{
					map[string]any{
						"name":    "db",
						"options": map[string]any{"db": "Db.Logger", "table": "t"},
					},
				},
			},
		},
	}
}

func TestCreateResolvesDBReference(t *testing.T) {
	services := newServices(t, dbLoggerConfig())
	db := fakeExecer{}
	require.NoError(t, services.Register("Db.Logger", db))

	logger, err := New().Create(services, "Application.Db")
	require.NoError(t, err)

	writer, ok := logger.Writers()[0].(*logging.DBWriter)
	require.True(t, ok)
	assert.Equal(t, db, writer.Handle())

	table := New().Config(services)
	spec := table["Application.Db"].(map[string]any)["writers"].([]any)[0].(map[string]any)
	assert.Equal(t, "Db.Logger", spec["options"].(map[string]any)["db"], "cached configuration must stay untouched")
}

func TestCreateKeepsUnresolvedReference(t *testing.T) {
	services := newServices(t, dbLoggerConfig())

	logger, err := New().Create(services, "Application.Db")
	require.NoError(t, err)

	writer, ok := logger.Writers()[0].(*logging.DBWriter)
	require.True(t, ok)
	assert.Equal(t, "Db.Logger", writer.Handle())
}

func TestCreateResolvesReferenceThroughAbstractFactory(t *testing.T) {
	services := newServices(t, dbLoggerConfig())
	services.AddAbstractFactory(&execerFactory{name: "Db.Logger"})

	logger, err := New().Create(services, "Application.Db")
	require.NoError(t, err)
	assert.IsType(t, fakeExecer{}, logger.Writers()[0].(*logging.DBWriter).Handle())
}

type execerFactory struct{ name string }

func (e *execerFactory) CanCreate(_ registry.Locator, name string) bool { return name == e.name }
func (e *execerFactory) CreateService(registry.Locator, string) (any, error) {
	return fakeExecer{}, nil
}

func TestResolveReferences(t *testing.T) {
	services := registry.New()
	require.NoError(t, services.Register("main", fakeExecer{}))

	handle := fakeExecer{}
	in := logging.Config{
		Writers: []logging.WriterSpec{
			{Name: "stream", Options: logging.Options{"db": "main"}},
			{Name: "DB", Options: logging.Options{"db": "main", "table": "t"}},
			{Name: "db", Options: logging.Options{"db": "missing"}},
			{Name: "db", Options: logging.Options{"db": handle}},
			{Name: "db"},
		},
		Processors: []logging.ProcessorSpec{{Name: "pid", Options: logging.Options{"db": "main"}}},
	}

	out := ResolveReferences(in, services)

	require.Len(t, out.Writers, 5)
	assert.Equal(t, "main", out.Writers[0].Options["db"], "only db writers are rewritten")
	assert.Equal(t, fakeExecer{}, out.Writers[1].Options["db"])
	assert.Equal(t, "t", out.Writers[1].Options["table"])
	assert.Equal(t, "missing", out.Writers[2].Options["db"])
	assert.Equal(t, handle, out.Writers[3].Options["db"])
	assert.Nil(t, out.Writers[4].Options)
	assert.Equal(t, "main", out.Processors[0].Options["db"])

	assert.Equal(t, "main", in.Writers[1].Options["db"], "input must not be modified")
	for i, w := range []string{"stream", "DB", "db", "db", "db"} {
		assert.Equal(t, w, out.Writers[i].Name)
	}
}

func TestCreatePreservesDeclarationOrder(t *testing.T) {
	services := newServices(t, map[string]any{
		"log": map[string]any{
			"Ordered": map[string]any{
				"writers": []any{
					map[string]any{"name": "second", "priority": 1},
					map[string]any{"name": "first", "priority": 10},
					map[string]any{"name": "noop"},
				},
				"processors": []any{
					map[string]any{"name": "tag", "options": map[string]any{"value": "b"}},
					map[string]any{"name": "pid"},
				},
			},
		},
	})

	first, second := logging.NewMockWriter(), logging.NewMockWriter()
	wm := logging.NewWriterManager()
	wm.SetInstance("first", first)
	wm.SetInstance("second", second)
	require.NoError(t, services.Register(WriterManagerService, wm))

	tag := logging.ProcessorFunc(func(_ context.Context, rec logging.Record) logging.Record {
		return rec.With("tag", "b")
	})
	pm := logging.NewProcessorManager()
	pm.SetInstance("tag", tag)
	require.NoError(t, services.Register(ProcessorManagerService, pm))

	logger, err := New().Create(services, "Ordered")
	require.NoError(t, err)

	writers := logger.Writers()
	require.Len(t, writers, 3)
	assert.Same(t, second, writers[0])
	assert.Same(t, first, writers[1])
	assert.IsType(t, logging.NoopWriter{}, writers[2])

	processors := logger.Processors()
	require.Len(t, processors, 2)
	require.NoError(t, logger.Log(context.Background(), 0, "ordered", nil))
	rec := second.Records()[0]
	assert.Equal(t, "b", rec.Fields["tag"])
	assert.Contains(t, rec.Fields, "pid")
}

func TestCreateUsesRegisteredManagers(t *testing.T) {
	services := newServices(t, map[string]any{
		"log": map[string]any{
			"Custom": map[string]any{
				"writers":    []any{map[string]any{"name": "CustomWriter"}},
				"processors": []any{map[string]any{"name": "CustomProcessor"}},
			},
		},
	})

	w := logging.NewMockWriter()
	wm := logging.NewWriterManager()
	wm.SetInstance("CustomWriter", w)
	services.MustRegister(WriterManagerService, wm)

	var processed atomic.Int32
	pm := logging.NewProcessorManager()
	pm.SetInstance("CustomProcessor", logging.ProcessorFunc(func(_ context.Context, rec logging.Record) logging.Record {
		processed.Add(1)
		return rec
	}))
	services.MustRegister(ProcessorManagerService, pm)

	logger, err := New().Create(services, "Custom")
	require.NoError(t, err)
	logger.Info("hello")

	assert.Len(t, w.Records(), 1)
	assert.Equal(t, int32(1), processed.Load())
}

func TestCreateRejectsWrongManagerType(t *testing.T) {
	services := newServices(t, frontendBackend())
	services.MustRegister(WriterManagerService, "not a manager")

	_, err := New().Create(services, "Application.Frontend")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalid))
}

func TestCreatePropagatesConstructionErrors(t *testing.T) {
	services := newServices(t, map[string]any{
		"log": map[string]any{
			"Broken":   map[string]any{"writers": []any{map[string]any{"name": "carrier-pigeon"}}},
			"BadShape": map[string]any{"writers": "oops"},
		},
	})
	f := New()

	_, err := f.Create(services, "Broken")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalid))
	assert.Contains(t, err.Error(), "carrier-pigeon")

	_, err = f.Create(services, "BadShape")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalid))
}

func TestConfigFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
	}{
		{"no configuration", nil},
		{"no log key", map[string]any{"db": map[string]any{}}},
		{"log is not a mapping", map[string]any{"log": []any{"A"}}},
		{"empty log section", map[string]any{"log": map[string]any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			services := &countingLocator{Locator: newServices(t, tt.settings)}
			f := New()

			assert.Empty(t, f.Config(services))
			assert.False(t, f.CanCreate(services, "A"))
			assert.False(t, f.CanCreate(services, "anything"))
			_, err := f.Create(services, "A")
			assert.True(t, apperrors.IsNotFound(err))
			assert.Equal(t, int32(1), services.reads.Load())
		})
	}
}

func TestConfigIsMemoized(t *testing.T) {
	settings := frontendBackend()
	services := &countingLocator{Locator: newServices(t, settings)}
	f := New()

	table := f.Config(services)
	require.Len(t, table, 2)

	settings["log"].(map[string]any)["Late"] = map[string]any{}
	delete(table, "Application.Frontend")

	assert.False(t, f.CanCreate(services, "Late"), "configuration changes after first read are not seen")
	assert.True(t, f.CanCreate(services, "Application.Frontend"), "callers cannot mutate the cache")
	assert.Equal(t, int32(1), services.reads.Load())
}

func TestConfigReadOnceUnderConcurrency(t *testing.T) {
	for _, settings := range []map[string]any{nil, frontendBackend()} {
		services := &countingLocator{Locator: newServices(t, settings)}
		f := New()

		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				f.CanCreate(services, "Application.Frontend")
				_, _ = f.Create(services, "Application.Backend")
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), services.reads.Load())
	}
}

func TestWithConfigKey(t *testing.T) {
	services := newServices(t, map[string]any{"loggers": map[string]any{"A": map[string]any{}}})

	assert.False(t, New().CanCreate(services, "A"))
	assert.True(t, New(WithConfigKey("loggers")).CanCreate(services, "A"))
}

func TestDiagnosticsNeverMentionSkippedReferences(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	services := newServices(t, dbLoggerConfig())
	f := New(WithDiagnostics(zap.New(core)))

	_, err := f.Create(services, "Application.Db")
	require.NoError(t, err)

	var messages []string
	for _, e := range logs.All() {
		messages = append(messages, e.Message)
	}
	assert.Equal(t, []string{"logger configuration loaded", "logger created"}, messages)
}
