package logging

import (
	"sort"
	"time"

	"github.com/creasty/defaults"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// EncoderConfig controls how the stream and file writers render records.
type EncoderConfig struct {
	// Format is the output format (json or console).
	Format string `mapstructure:"format" default:"json" validate:"oneof=json console"`

	MessageKey    string `mapstructure:"message-key" default:"message"`
	LevelKey      string `mapstructure:"level-key" default:"level"`
	TimeKey       string `mapstructure:"time-key" default:"time"`
	NameKey       string `mapstructure:"name-key" default:"logger"`
	CallerKey     string `mapstructure:"caller-key" default:"caller"`
	StacktraceKey string `mapstructure:"stacktrace-key" default:"stacktrace"`

	// EncodeLevel is the level encoder type (LowercaseLevelEncoder, LowercaseColorLevelEncoder, CapitalLevelEncoder, CapitalColorLevelEncoder).
	EncodeLevel string `mapstructure:"encode-level" default:"LowercaseLevelEncoder"`

	// Prefix is prepended to the rendered timestamp.
	Prefix string `mapstructure:"prefix"`

	// TimeFormat is a Go time layout.
	TimeFormat string `mapstructure:"time-format" default:"2006-01-02T15:04:05.000Z07:00"`
}

// DefaultEncoderConfig returns an EncoderConfig with every default applied.
func DefaultEncoderConfig() EncoderConfig {
	var c EncoderConfig
	_ = defaults.Set(&c)
	return c
}

// ZapEncodeLevel returns the zapcore.LevelEncoder based on EncodeLevel.
func (c EncoderConfig) ZapEncodeLevel() zapcore.LevelEncoder {
	switch c.EncodeLevel {
	case "LowercaseColorLevelEncoder":
		return zapcore.LowercaseColorLevelEncoder
	case "CapitalLevelEncoder":
		return zapcore.CapitalLevelEncoder
	case "CapitalColorLevelEncoder":
		return zapcore.CapitalColorLevelEncoder
	default:
		return zapcore.LowercaseLevelEncoder
	}
}

// CusTimeEncoder formats the time with TimeFormat and adds Prefix.
func CusTimeEncoder(c EncoderConfig) zapcore.TimeEncoder {
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(c.Prefix + t.Format(c.TimeFormat))
	}
}

// NewEncoder returns a zapcore.Encoder for the configured format.
func NewEncoder(c EncoderConfig) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     c.MessageKey,
		LevelKey:       c.LevelKey,
		TimeKey:        c.TimeKey,
		NameKey:        c.NameKey,
		CallerKey:      c.CallerKey,
		StacktraceKey:  c.StacktraceKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    c.ZapEncodeLevel(),
		EncodeTime:     CusTimeEncoder(c),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if c.Format == "console" {
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

// encodeRecord renders rec as one line. Fields are emitted in key order.
// The caller must Free the returned buffer.
func encodeRecord(enc zapcore.Encoder, rec Record) (*buffer.Buffer, error) {
	keys := make([]string, 0, len(rec.Fields))
	for k := range rec.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zapcore.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, rec.Fields[k]))
	}

	return enc.EncodeEntry(zapcore.Entry{
		Level:      rec.Level,
		Time:       rec.Time,
		LoggerName: rec.Logger,
		Message:    rec.Message,
		Caller:     rec.Caller,
	}, fields)
}
