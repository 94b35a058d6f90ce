package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCaptureLogger(t *testing.T, processors ...ProcessorSpec) (*Logger, *MockWriter) {
	t.Helper()
	w := NewMockWriter()
	wm := NewWriterManager()
	wm.SetInstance("capture", w)
	l, err := New(Config{Writers: []WriterSpec{{Name: "capture"}}, Processors: processors},
		WithWriterManager(wm), WithName("http"))
	require.NoError(t, err)
	return l, w
}

func TestMiddlewareWithChiRequestID(t *testing.T) {
	l, w := newCaptureLogger(t, ProcessorSpec{Name: ProcessorRequestID})

	var seen *Logger
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Middleware(l))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/items/7?full=1", nil)
	req.Header.Set(middleware.RequestIDHeader, "chi-req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Same(t, l, seen)

	recs := w.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "http.request.start", recs[0].Message)
	assert.Equal(t, "full=1", recs[0].Fields["query"])
	assert.Equal(t, "http.request.complete", recs[1].Message)
	assert.Equal(t, http.StatusCreated, recs[1].Fields["status"])
	assert.Equal(t, 2, recs[1].Fields["bytes"])
	for _, r := range recs {
		assert.Equal(t, "chi-req-1", r.Fields["requestId"])
	}
}

func TestMiddlewareRequestIDHeaderFallback(t *testing.T) {
	l, w := newCaptureLogger(t, ProcessorSpec{Name: ProcessorContext})

	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(RequestIDHeader, "hdr-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	recs := w.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "hdr-1", recs[0].Fields["request_id"])
	assert.Equal(t, http.StatusOK, recs[1].Fields["status"])
}

func TestRecoveryMiddleware(t *testing.T) {
	l, w := newCaptureLogger(t)

	h := Middleware(l)(RecoveryMiddleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var messages []string
	for _, r := range w.Records() {
		messages = append(messages, r.Message)
	}
	assert.Contains(t, messages, "http.panic.recovered")
}
