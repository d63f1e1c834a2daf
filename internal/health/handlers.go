package health

import (
	"context"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// Probe checks one dependency.
type Probe func(ctx context.Context) error

var accepting atomic.Bool

func init() { accepting.Store(true) }

// SetReady toggles readiness; the API clears it when it starts draining.
func SetReady(ready bool) { accepting.Store(ready) }

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Probes  map[string]Probe
	Timeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe with the configured timeout and reports each result.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	ok := accepting.Load()
	if !ok {
		status["server"] = "draining"
	}
	names := make([]string, 0, len(h.Probes))
	for name := range h.Probes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		status[name] = "ok"
		if err := h.run(r.Context(), h.Probes[name]); err != nil {
			status[name] = err.Error()
			ok = false
		}
	}
	code := http.StatusOK
	if !ok || len(h.Probes) == 0 {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}

func (h Handler) run(ctx context.Context, probe Probe) error {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return probe(ctx)
}
