package myhttp_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"snapshot-diff/internal/myhttp"
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/metric/noop"
)

func newMux(t *testing.T) http.Handler {
	t.Helper()

	histogram, err := noop.NewMeterProvider().Meter("test").Int64Histogram("http_requests_duration_micro_seconds")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mux := myhttp.NewServerMux(slog.New(slog.NewTextHandler(io.Discard, nil)), histogram)

	mux.HandleFuncWithMiddleware("GET /panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	mux.HandleFuncWithMiddleware("GET /logger", func(w http.ResponseWriter, r *http.Request) {
		if _, err := logr.FromContext(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func TestMiddlewareRecoversPanics(t *testing.T) {
	t.Parallel()

	recorder := httptest.NewRecorder()
	newMux(t).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if diff := cmp.Diff(http.StatusInternalServerError, recorder.Code); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestMiddlewareInjectsLogger(t *testing.T) {
	t.Parallel()

	recorder := httptest.NewRecorder()
	newMux(t).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/logger", nil))

	if diff := cmp.Diff(http.StatusNoContent, recorder.Code); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
