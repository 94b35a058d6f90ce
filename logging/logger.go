package logging

import (
	"context"
	"maps"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Writer is a log sink.
type Writer interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// Processor transforms a record before it reaches the writers. It must not
// mutate rec.Fields in place; use Record.With or Record.Clone.
type Processor interface {
	Process(ctx context.Context, rec Record) Record
}

// syncer is implemented by writers that buffer output.
type syncer interface {
	Sync() error
}

// LevelOption is the writer option holding its minimum level.
const LevelOption = "level"

// DefaultPriority is assigned to writers declared without a priority.
const DefaultPriority = 1

type writerEntry struct {
	writer   Writer
	level    zapcore.Level
	priority int
}

// Logger dispatches records through its processors to its writers, both in
// declaration order.
type Logger struct {
	name       string
	writers    []writerEntry
	processors []Processor
	zl         *zap.Logger
}

type loggerOptions struct {
	name       string
	writers    *WriterManager
	processors *ProcessorManager
}

// Option configures New.
type Option func(*loggerOptions)

// WithName sets the logger name recorded on every record.
func WithName(name string) Option {
	return func(o *loggerOptions) { o.name = name }
}

// WithWriterManager resolves writer names through m instead of a default manager.
func WithWriterManager(m *WriterManager) Option {
	return func(o *loggerOptions) { o.writers = m }
}

// WithProcessorManager resolves processor names through m instead of a default manager.
func WithProcessorManager(m *ProcessorManager) Option {
	return func(o *loggerOptions) { o.processors = m }
}

// New builds a Logger from cfg. Processors are built before writers; the
// first failure is returned as produced by the manager and any writer
// already built is closed.
func New(cfg Config, opts ...Option) (*Logger, error) {
	o := loggerOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.writers == nil {
		o.writers = NewWriterManager()
	}
	if o.processors == nil {
		o.processors = NewProcessorManager()
	}

	l := &Logger{name: o.name}

	for _, spec := range cfg.Processors {
		p, err := o.processors.Build(spec.Name, spec.Options)
		if err != nil {
			return nil, err
		}
		l.processors = append(l.processors, p)
	}

	for _, spec := range cfg.Writers {
		entry, err := buildWriter(o.writers, spec)
		if err != nil {
			_ = l.Close()
			return nil, err
		}
		l.writers = append(l.writers, entry)
	}

	l.zl = zap.New(newRecordCore(l), zap.AddCaller(), zap.AddCallerSkip(1))
	return l, nil
}

// NewNop returns a Logger without writers.
func NewNop() *Logger {
	l := &Logger{}
	l.zl = zap.New(newRecordCore(l), zap.AddCallerSkip(1))
	return l
}

func buildWriter(m *WriterManager, spec WriterSpec) (writerEntry, error) {
	entry := writerEntry{level: zapcore.DebugLevel, priority: DefaultPriority}
	if spec.Priority != nil {
		entry.priority = *spec.Priority
	}
	if lvl := spec.Options.GetString(LevelOption, ""); lvl != "" {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return entry, err
		}
		entry.level = parsed
	}

	w, err := m.Build(spec.Name, spec.Options)
	if err != nil {
		return entry, err
	}
	entry.writer = w
	return entry, nil
}

// Name returns the name the logger was built under.
func (l *Logger) Name() string {
	return l.name
}

// Writers returns the writers in declaration order.
func (l *Logger) Writers() []Writer {
	out := make([]Writer, len(l.writers))
	for i, e := range l.writers {
		out[i] = e.writer
	}
	return out
}

// WriterPriority returns the declared priority of the i-th writer. Priority
// is informational; it never changes dispatch order.
func (l *Logger) WriterPriority(i int) (int, bool) {
	if i < 0 || i >= len(l.writers) {
		return 0, false
	}
	return l.writers[i].priority, true
}

// Processors returns the processors in declaration order.
func (l *Logger) Processors() []Processor {
	return append([]Processor(nil), l.processors...)
}

// Log builds a record and dispatches it. Errors from all writers are combined.
func (l *Logger) Log(ctx context.Context, level zapcore.Level, msg string, fields map[string]any) error {
	rec := Record{
		Time:    time.Now(),
		Level:   level,
		Logger:  l.name,
		Message: msg,
		Fields:  maps.Clone(fields),
	}
	return l.dispatch(ctx, rec)
}

func (l *Logger) dispatch(ctx context.Context, rec Record) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if rec.Fields == nil {
		rec.Fields = make(map[string]any)
	}

	for _, p := range l.processors {
		rec = p.Process(ctx, rec)
	}

	var err error
	for _, e := range l.writers {
		if rec.Level < e.level {
			continue
		}
		err = multierr.Append(err, e.writer.Write(ctx, rec))
	}
	return err
}

// enabled reports whether any writer accepts level.
func (l *Logger) enabled(level zapcore.Level) bool {
	for _, e := range l.writers {
		if level >= e.level {
			return true
		}
	}
	return false
}

// Debug logs a message at DebugLevel.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zl.Debug(msg, fields...)
}

// Info logs a message at InfoLevel.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zl.Info(msg, fields...)
}

// Warn logs a message at WarnLevel.
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zl.Warn(msg, fields...)
}

// Error logs a message at ErrorLevel.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zl.Error(msg, fields...)
}

// The level methods above hand processors a background context. The Context
// variants below, or a WithContext field, pass ctx instead.

func (l *Logger) DebugContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zl.Debug(msg, append(fields[:len(fields):len(fields)], WithContext(ctx))...)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zl.Info(msg, append(fields[:len(fields):len(fields)], WithContext(ctx))...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zl.Warn(msg, append(fields[:len(fields):len(fields)], WithContext(ctx))...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zl.Error(msg, append(fields[:len(fields):len(fields)], WithContext(ctx))...)
}

// Zap returns a *zap.Logger that writes through this Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zl.WithOptions(zap.AddCallerSkip(-1))
}

// Sync flushes writers that buffer output.
func (l *Logger) Sync() error {
	var err error
	for _, e := range l.writers {
		if s, ok := e.writer.(syncer); ok {
			err = multierr.Append(err, s.Sync())
		}
	}
	return err
}

// Close closes every writer. Services injected into writers (database
// handles, redis clients) are left open.
func (l *Logger) Close() error {
	var err error
	for _, e := range l.writers {
		err = multierr.Append(err, e.writer.Close())
	}
	return err
}
