package logging

import (
	"context"
	"fmt"
	"maps"
	"os"
	"regexp"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// Built-in processor names.
const (
	ProcessorRequestID   = "requestid"
	ProcessorReferenceID = "referenceid"
	ProcessorContext     = "context"
	ProcessorPID         = "pid"
	ProcessorBacktrace   = "backtrace"
	ProcessorPlaceholder = "placeholder"
)

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, rec Record) Record

func (f ProcessorFunc) Process(ctx context.Context, rec Record) Record {
	return f(ctx, rec)
}

// requestIDProcessor adds "requestId": the request id from the context or,
// outside a request, one id generated for the processor's lifetime.
type requestIDProcessor struct {
	fallback string
}

func newRequestIDProcessor(Options) (Processor, error) {
	return &requestIDProcessor{fallback: uuid.NewString()}, nil
}

func (p *requestIDProcessor) Process(ctx context.Context, rec Record) Record {
	id := GetRequestID(ctx)
	if id == "" {
		id = p.fallback
	}
	return rec.With("requestId", id)
}

type referenceIDOptions struct {
	ReferenceID string `mapstructure:"reference-id"`
}

// referenceIDProcessor adds a fixed "referenceId".
type referenceIDProcessor struct {
	id string
}

func newReferenceIDProcessor(opts Options) (Processor, error) {
	var o referenceIDOptions
	if err := opts.Decode(&o); err != nil {
		return nil, err
	}
	if o.ReferenceID == "" {
		o.ReferenceID = uuid.NewString()
	}
	return &referenceIDProcessor{id: o.ReferenceID}, nil
}

func (p *referenceIDProcessor) Process(_ context.Context, rec Record) Record {
	return rec.With("referenceId", p.id)
}

func newContextProcessor(Options) (Processor, error) {
	return ProcessorFunc(func(ctx context.Context, rec Record) Record {
		fields := ContextFields(ctx)
		if len(fields) == 0 {
			return rec
		}
		rec = rec.Clone()
		maps.Copy(rec.Fields, fields)
		return rec
	}), nil
}

func newPIDProcessor(Options) (Processor, error) {
	pid := os.Getpid()
	return ProcessorFunc(func(_ context.Context, rec Record) Record {
		return rec.With("pid", pid)
	}), nil
}

type backtraceOptions struct {
	// Ignore lists extra function name prefixes to skip.
	Ignore []string `mapstructure:"ignore"`
}

// backtraceProcessor adds the file, line and function of the call site.
type backtraceProcessor struct {
	ignore []string
}

var loggingPackage = func() string {
	pc, _, _, _ := runtime.Caller(0)
	name := runtime.FuncForPC(pc).Name()
	slash := strings.LastIndex(name, "/")
	return name[:slash+strings.Index(name[slash:], ".")+1]
}()

func newBacktraceProcessor(opts Options) (Processor, error) {
	var o backtraceOptions
	if err := opts.Decode(&o); err != nil {
		return nil, err
	}
	return &backtraceProcessor{ignore: append([]string{"go.uber.org/zap", "runtime."}, o.Ignore...)}, nil
}

func (p *backtraceProcessor) Process(_ context.Context, rec Record) Record {
	if rec.Caller.Defined {
		rec = rec.With("file", rec.Caller.File)
		rec = rec.With("line", rec.Caller.Line)
		return rec.With("function", rec.Caller.Function)
	}

	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !p.skip(frame) {
			rec = rec.With("file", frame.File)
			rec = rec.With("line", frame.Line)
			return rec.With("function", frame.Function)
		}
		if !more {
			return rec
		}
	}
}

func (p *backtraceProcessor) skip(frame runtime.Frame) bool {
	if strings.HasPrefix(frame.Function, loggingPackage) && !strings.HasSuffix(frame.File, "_test.go") {
		return true
	}
	for _, prefix := range p.ignore {
		if strings.HasPrefix(frame.Function, prefix) {
			return true
		}
	}
	return false
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_.\-]+)\}`)

// newPlaceholderProcessor interpolates {key} in the message with the
// matching field. Unknown keys are left as written.
func newPlaceholderProcessor(Options) (Processor, error) {
	return ProcessorFunc(func(_ context.Context, rec Record) Record {
		if !strings.Contains(rec.Message, "{") || len(rec.Fields) == 0 {
			return rec
		}
		rec.Message = placeholderPattern.ReplaceAllStringFunc(rec.Message, func(m string) string {
			v, ok := rec.Fields[m[1:len(m)-1]]
			if !ok {
				return m
			}
			return fmt.Sprint(v)
		})
		return rec
	}), nil
}
