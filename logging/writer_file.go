package logging

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type fileOptions struct {
	// Filename is the log file path. In daily mode the file lands in a
	// per-date directory next to it: <dir>/<2006-01-02>/<base>.
	Filename   string `mapstructure:"filename" validate:"required"`
	MaxSize    int    `mapstructure:"max-size" default:"100"`
	MaxBackups int    `mapstructure:"max-backups" default:"10"`
	MaxAge     int    `mapstructure:"max-age" default:"7"`
	Compress   bool   `mapstructure:"compress"`
	Daily      bool   `mapstructure:"daily"`

	EncoderConfig `mapstructure:",squash"`
}

// FileWriter writes encoded records to a lumberjack-rotated file.
type FileWriter struct {
	opts    fileOptions
	encoder zapcore.Encoder
	now     func() time.Time

	mu      sync.Mutex
	writers map[string]*lumberjack.Logger
}

func newFileWriter(opts Options) (Writer, error) {
	var o fileOptions
	if err := opts.Decode(&o); err != nil {
		return nil, err
	}
	return &FileWriter{
		opts:    o,
		encoder: NewEncoder(o.EncoderConfig),
		now:     time.Now,
		writers: make(map[string]*lumberjack.Logger),
	}, nil
}

func (w *FileWriter) Write(_ context.Context, rec Record) error {
	buf, err := encodeRecord(w.encoder, rec)
	if err != nil {
		return err
	}
	defer buf.Free()

	w.mu.Lock()
	defer w.mu.Unlock()
	out, err := w.current()
	if err != nil {
		return err
	}
	_, err = out.Write(buf.Bytes())
	return err
}

// current returns the rotating file for today, closing files of past days.
// Caller holds w.mu.
func (w *FileWriter) current() (*lumberjack.Logger, error) {
	key, filename := w.path()
	if out, ok := w.writers[key]; ok {
		return out, nil
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, err
	}
	out := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    w.opts.MaxSize,
		MaxBackups: w.opts.MaxBackups,
		MaxAge:     w.opts.MaxAge,
		Compress:   w.opts.Compress,
		LocalTime:  true,
	}

	for k, old := range w.writers {
		_ = old.Close()
		delete(w.writers, k)
	}
	w.writers[key] = out
	return out, nil
}

func (w *FileWriter) path() (key, filename string) {
	if !w.opts.Daily {
		return "", w.opts.Filename
	}
	key = w.now().Format(time.DateOnly)
	dir, base := filepath.Split(w.opts.Filename)
	return key, filepath.Join(dir, key, base)
}

// Filename returns the path records are currently written to.
func (w *FileWriter) Filename() string {
	_, filename := w.path()
	return filename
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	for k, out := range w.writers {
		err = multierr.Append(err, out.Close())
		delete(w.writers, k)
	}
	return err
}
