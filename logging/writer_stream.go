package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap/zapcore"

	apperrors "github.com/leeforge/logkit/errors"
)

type streamOptions struct {
	// Stream is "stdout", "stderr", a file path opened for appending, or an io.Writer.
	Stream        any `mapstructure:"stream"`
	EncoderConfig `mapstructure:",squash"`
}

// StreamWriter encodes records with a zapcore encoder onto an io.Writer.
type StreamWriter struct {
	mu      sync.Mutex
	out     io.Writer
	owned   io.Closer
	encoder zapcore.Encoder
}

func newStreamWriter(opts Options) (Writer, error) {
	var o streamOptions
	if err := opts.Decode(&o); err != nil {
		return nil, err
	}

	w := &StreamWriter{encoder: NewEncoder(o.EncoderConfig)}
	switch s := o.Stream.(type) {
	case nil:
		w.out = os.Stdout
	case io.Writer:
		w.out = s
	case string:
		switch s {
		case "", "stdout":
			w.out = os.Stdout
		case "stderr":
			w.out = os.Stderr
		default:
			f, err := os.OpenFile(s, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log stream %s: %w", s, err)
			}
			w.out = f
			w.owned = f
		}
	default:
		return nil, apperrors.NewInvalid("stream", fmt.Sprintf("%T", s), "expected a stream name, path or io.Writer")
	}
	return w, nil
}

// NewStreamWriter writes records to out in the given encoding; start from
// DefaultEncoderConfig.
func NewStreamWriter(out io.Writer, cfg EncoderConfig) *StreamWriter {
	return &StreamWriter{out: out, encoder: NewEncoder(cfg)}
}

func (w *StreamWriter) Write(_ context.Context, rec Record) error {
	buf, err := encodeRecord(w.encoder, rec)
	if err != nil {
		return err
	}
	defer buf.Free()

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.out.Write(buf.Bytes())
	return err
}

func (w *StreamWriter) Sync() error {
	if s, ok := w.out.(zapcore.WriteSyncer); ok && w.owned != nil {
		return s.Sync()
	}
	return nil
}

// Close closes the stream only when the writer opened it itself.
func (w *StreamWriter) Close() error {
	if w.owned == nil {
		return nil
	}
	return w.owned.Close()
}
