package logging

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	apperrors "github.com/leeforge/logkit/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Execer is the part of *sql.DB, *sql.Conn and *sql.Tx the db writer needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type dbOptions struct {
	// DB is an Execer, normally put there by the logger factory. A string
	// is a service name that was never resolved.
	DB    any    `mapstructure:"db"`
	Table string `mapstructure:"table" validate:"required"`
	// Column maps event keys to column names. A nested map maps the keys of
	// a nested event value, e.g. {extra: {user: user_id}}.
	Column map[string]any `mapstructure:"column"`
	// Separator joins nested keys when flattening the event.
	Separator   string `mapstructure:"separator" default:"_"`
	Placeholder string `mapstructure:"placeholder" default:"?" validate:"oneof=? $"`
}

type dbColumn struct {
	name string
	key  string
}

// DBWriter inserts one row per record.
type DBWriter struct {
	handle      any
	db          Execer
	table       string
	columns     []dbColumn
	separator   string
	placeholder string
}

func newDBWriter(opts Options) (Writer, error) {
	var o dbOptions
	if err := opts.Decode(&o); err != nil {
		return nil, err
	}

	w := &DBWriter{
		handle:      o.DB,
		table:       o.Table,
		separator:   o.Separator,
		placeholder: o.Placeholder,
	}
	switch h := o.DB.(type) {
	case Execer:
		w.db = h
	case string:
		// Left unresolved; Write reports it.
	case nil:
		return nil, apperrors.NewInvalid("db", nil, "database handle is required")
	default:
		return nil, apperrors.NewInvalid("db", fmt.Sprintf("%T", h), "expected a database handle")
	}

	if len(o.Column) > 0 {
		for key, name := range flatten(o.Column, o.Separator) {
			col, ok := name.(string)
			if !ok || col == "" {
				return nil, apperrors.NewInvalid("column", key, "column name must be a non-empty string")
			}
			w.columns = append(w.columns, dbColumn{name: col, key: key})
		}
		sort.Slice(w.columns, func(i, j int) bool { return w.columns[i].name < w.columns[j].name })
	}
	return w, nil
}

// NewDBWriter writes records into table through db with the default columns.
func NewDBWriter(db Execer, table string) *DBWriter {
	return &DBWriter{handle: db, db: db, table: table, separator: "_", placeholder: "?"}
}

// Handle returns the configured database option as given, resolved or not.
func (w *DBWriter) Handle() any {
	return w.handle
}

func (w *DBWriter) Write(ctx context.Context, rec Record) error {
	if w.db == nil {
		return apperrors.New(apperrors.ErrorTypeInvalid, fmt.Sprintf("database handle %v was not resolved", w.handle))
	}

	names, args, err := w.row(rec)
	if err != nil {
		return err
	}

	marks := make([]string, len(names))
	for i := range marks {
		if w.placeholder == "$" {
			marks[i] = "$" + strconv.Itoa(i+1)
		} else {
			marks[i] = "?"
		}
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		w.table, strings.Join(names, ", "), strings.Join(marks, ", "))

	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.WrapWithType(err, apperrors.ErrorTypeExternal, "insert log record")
	}
	return nil
}

func (w *DBWriter) row(rec Record) ([]string, []any, error) {
	event := map[string]any{
		"timestamp": rec.Time,
		"level":     rec.Level.String(),
		"logger":    rec.Logger,
		"message":   rec.Message,
		"extra":     rec.Fields,
	}

	if len(w.columns) == 0 {
		extra, err := json.Marshal(rec.Fields)
		if err != nil {
			return nil, nil, err
		}
		return []string{"timestamp", "level", "logger", "message", "extra"},
			[]any{rec.Time, event["level"], rec.Logger, rec.Message, string(extra)}, nil
	}

	values := flatten(event, w.separator)
	names := make([]string, len(w.columns))
	args := make([]any, len(w.columns))
	for i, c := range w.columns {
		names[i] = c.name
		v, err := sqlValue(values[c.key])
		if err != nil {
			return nil, nil, err
		}
		args[i] = v
	}
	return names, args, nil
}

// Close leaves the database handle open; its owner closes it.
func (w *DBWriter) Close() error {
	return nil
}

// flatten joins nested map keys with sep: {extra: {a: 1}} becomes {extra_a: 1}.
func flatten(m map[string]any, sep string) map[string]any {
	out := make(map[string]any, len(m))
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + sep + k
			}
			if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
				walk(key, nested)
				continue
			}
			out[key] = v
		}
	}
	walk("", m)
	return out
}

// sqlValue passes scalars through and renders anything else as JSON.
func sqlValue(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64, []byte, time.Time:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
