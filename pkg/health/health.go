// Package health serves liveness and readiness probes backed by periodic
// checks.
//
// A check flips to failing only after FailureThreshold consecutive errors and
// back to passing after SuccessThreshold consecutive successes, so a single
// slow ping does not take the instance out of rotation.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// Kind selects the probe a check contributes to.
type Kind int

const (
	// Liveness checks decide whether the process should be restarted.
	Liveness Kind = iota
	// Readiness checks decide whether the instance receives traffic.
	Readiness
)

// CheckFunc reports nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Option customises a registered check.
type Option func(*check)

// WithTimeout bounds a single run of the check.
func WithTimeout(d time.Duration) Option {
	return func(c *check) { c.timeout = d }
}

// WithThresholds sets how many consecutive failures mark the check failing
// and how many consecutive successes restore it.
func WithThresholds(failure, success int) Option {
	return func(c *check) {
		if failure > 0 {
			c.failureThreshold = failure
		}
		if success > 0 {
			c.successThreshold = success
		}
	}
}

// check is one registered probe. Counters are touched only by the goroutine
// running the check; passing and lastErr are read by HTTP handlers.
type check struct {
	name             string
	kind             Kind
	fn               CheckFunc
	timeout          time.Duration
	failureThreshold int
	successThreshold int

	passing atomic.Bool
	lastErr atomic.Pointer[string]

	fails     int
	successes int
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.fn(ctx); err != nil {
		msg := err.Error()
		c.lastErr.Store(&msg)
		c.successes = 0
		c.fails++
		if c.fails >= c.failureThreshold {
			c.passing.Store(false)
		}
		return
	}

	c.lastErr.Store(nil)
	c.fails = 0
	c.successes++
	if c.successes >= c.successThreshold {
		c.passing.Store(true)
	}
}

func (c *check) failure() string {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return "failing"
}

// Health owns the registered checks and the manual readiness gate.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*check
	cancel context.CancelFunc
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// Register adds a check. Checks start passing. Register must be called
// before Start.
func (h *Health) Register(kind Kind, name string, fn CheckFunc, opts ...Option) {
	c := &check{
		name:             name,
		kind:             kind,
		fn:               fn,
		timeout:          time.Second,
		failureThreshold: 3,
		successThreshold: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.passing.Store(true)

	h.mu.Lock()
	h.checks = append(h.checks, c)
	h.mu.Unlock()
}

// Start runs every check immediately and then every interval until Stop or
// ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := append([]*check(nil), h.checks...)
	h.mu.Unlock()

	for _, c := range checks {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				c.run(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop halts background checks. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady opens or closes the readiness gate, e.g. false while draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

func (h *Health) failures(kind Kind) map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]string)
	for _, c := range h.checks {
		if c.kind == kind && !c.passing.Load() {
			out[c.name] = c.failure()
		}
	}
	return out
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, h.failures(Liveness))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeReport(w, failures)
}

// writeReport answers 200 {"status":"ok"} or 503 with the failing checks.
func writeReport(w http.ResponseWriter, failures map[string]string) {
	status, label := http.StatusOK, "ok"
	if len(failures) > 0 {
		status, label = http.StatusServiceUnavailable, "unhealthy"
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(label) })
		if len(failures) == 0 {
			return
		}
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for name, msg := range failures {
					e.Field(name, func(e *jx.Encoder) { e.Str(msg) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
