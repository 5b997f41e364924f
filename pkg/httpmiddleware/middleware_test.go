package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_FirstIsOutermost(t *testing.T) {
	var calls []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls = append(calls, "handler")
	}), mark("a"), mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "handler"}, calls)
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{name: "Generated", incoming: "", reuse: false},
		{name: "Reused", incoming: "req-123", reuse: true},
		{name: "ControlChars", incoming: "bad\x01id", reuse: false},
		{name: "TooLong", incoming: strings.Repeat("a", 129), reuse: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}), RequestID())

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
			if tt.reuse {
				assert.Equal(t, tt.incoming, seen)
			} else {
				assert.NotEqual(t, tt.incoming, seen)
			}
		})
	}
}

func TestRequestID_AddsLoggerField(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("inside")
	}), InjectLogger(zap.New(core)), RequestID())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "trace-me")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("inside").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "trace-me", entries[0].ContextMap()["request_id"])
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), InjectLogger(zap.New(core)), Recovery())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"code":500,"error":"internal","message":"internal server error"}`, rec.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestRecovery_RepanicsOnAbort(t *testing.T) {
	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}), Recovery())

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func newRoutedHandler(lg *zap.Logger) http.Handler {
	api := chi.NewRouter()
	api.Get("/orders/{orderID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	api.Post("/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	root := chi.NewRouter()
	root.Mount("/api", api)

	return Wrap(root,
		ShareRouteContext(),
		InjectLogger(lg),
		RequestID(),
		LogRequests(ChiRoute),
	)
}

func TestLogRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		route  string
		status int
		level  zapcore.Level
	}{
		{
			name:   "Matched",
			method: http.MethodGet,
			path:   "/api/orders/abc",
			route:  "/api/orders/{orderID}",
			status: http.StatusOK,
			level:  zapcore.InfoLevel,
		},
		{
			name:   "ServerError",
			method: http.MethodPost,
			path:   "/api/orders",
			route:  "/api/orders",
			status: http.StatusInternalServerError,
			level:  zapcore.WarnLevel,
		},
		{
			name:   "Unmatched",
			method: http.MethodGet,
			path:   "/nope",
			route:  "unknown",
			status: http.StatusNotFound,
			level:  zapcore.InfoLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := newRoutedHandler(zap.New(core))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, tt.status, rec.Code)

			entries := logs.All()
			require.Len(t, entries, 1)
			e := entries[0]
			assert.Equal(t, tt.level, e.Level)

			fields := e.ContextMap()
			assert.Equal(t, tt.route, fields["route"])
			assert.Equal(t, tt.path, fields["path"])
			assert.EqualValues(t, tt.status, fields["status"])
			assert.NotEmpty(t, fields["request_id"])
		})
	}
}

func TestCORS(t *testing.T) {
	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), CORS(CORSConfig{MaxAge: 600}), RequestID())

	t.Run("Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
		req.Header.Set("Origin", "https://workshop.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, strings.ToUpper(rec.Header().Get("Access-Control-Allow-Methods")), http.MethodPut)
		assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("Actual", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.Header.Set("Origin", "https://workshop.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Expose-Headers")), "x-request-id")
	})
}

func TestInstrument_PassesThrough(t *testing.T) {
	api := chi.NewRouter()
	api.Get("/orders/{orderID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	h := Wrap(api,
		ShareRouteContext(),
		Instrument("shop-api", tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider()),
		Labeler(ChiRoute),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/o1", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
