package logging

import (
	"context"
	"maps"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const contextFieldKey = "logkit.context"

// WithContext carries ctx through a zap call to the logger's processors, so
// request ids and context fields reach records logged through Info and friends.
// The field itself is never encoded.
func WithContext(ctx context.Context) zap.Field {
	return zap.Field{Key: contextFieldKey, Type: zapcore.SkipType, Interface: ctx}
}

func contextOf(f zapcore.Field) (context.Context, bool) {
	if f.Type != zapcore.SkipType || f.Key != contextFieldKey {
		return nil, false
	}
	ctx, ok := f.Interface.(context.Context)
	return ctx, ok && ctx != nil
}

// recordCore is a zapcore.Core that turns zap entries into Records and hands
// them to a Logger, so that zap call sites feed configured writers.
type recordCore struct {
	logger *Logger
	fields []zapcore.Field
}

func newRecordCore(l *Logger) zapcore.Core {
	return &recordCore{logger: l}
}

// Enabled implements zapcore.LevelEnabler.
func (c *recordCore) Enabled(level zapcore.Level) bool {
	return c.logger.enabled(level)
}

// With implements zapcore.Core.
func (c *recordCore) With(fields []zapcore.Field) zapcore.Core {
	return &recordCore{
		logger: c.logger,
		fields: append(append([]zapcore.Field(nil), c.fields...), fields...),
	}
}

// Check implements zapcore.Core.
func (c *recordCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

// Write implements zapcore.Core.
func (c *recordCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	ctx := context.Background()
	enc := zapcore.NewMapObjectEncoder()
	for _, group := range [][]zapcore.Field{c.fields, fields} {
		for _, f := range group {
			if fc, ok := contextOf(f); ok {
				ctx = fc
				continue
			}
			f.AddTo(enc)
		}
	}

	name := c.logger.name
	if entry.LoggerName != "" {
		if name != "" {
			name += "."
		}
		name += entry.LoggerName
	}

	return c.logger.dispatch(ctx, Record{
		Time:    entry.Time,
		Level:   entry.Level,
		Logger:  name,
		Message: entry.Message,
		Fields:  maps.Clone(enc.Fields),
		Caller:  entry.Caller,
	})
}

// Sync implements zapcore.Core.
func (c *recordCore) Sync() error {
	return c.logger.Sync()
}
