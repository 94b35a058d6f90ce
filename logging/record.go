package logging

import (
	"maps"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	apperrors "github.com/leeforge/logkit/errors"
)

// Record is a single log event as seen by processors and writers.
type Record struct {
	Time    time.Time
	Level   zapcore.Level
	Logger  string
	Message string
	Fields  map[string]any
	Caller  zapcore.EntryCaller
}

// Clone returns a copy of r with its own Fields map.
func (r Record) Clone() Record {
	r.Fields = maps.Clone(r.Fields)
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	return r
}

// With returns a copy of r with key set to value.
func (r Record) With(key string, value any) Record {
	r = r.Clone()
	r.Fields[key] = value
	return r
}

// ParseLevel parses a level name case-insensitively ("warning" is accepted for warn).
func ParseLevel(level string) (zapcore.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.DebugLevel, apperrors.NewInvalid("level", level, "unknown log level")
	}
	return l, nil
}
