package agent

import (
	"sync/atomic"
	"time"
)

type HealthStatus struct {
	serving        atomic.Bool
	storeConnected atomic.Bool
	requests       atomic.Int64
	lastRequestAt  atomic.Int64
}

func NewHealthStatus() *HealthStatus {
	h := &HealthStatus{}
	h.serving.Store(false)
	h.storeConnected.Store(false)
	return h
}

func (h *HealthStatus) SetServing(ok bool) {
	h.serving.Store(ok)
}

func (h *HealthStatus) SetStoreConnected(ok bool) {
	h.storeConnected.Store(ok)
}

func (h *HealthStatus) MarkRequest(ts time.Time) {
	h.requests.Add(1)
	h.lastRequestAt.Store(ts.UnixNano())
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"serving":           h.serving.Load(),
		"store_connected":   h.storeConnected.Load(),
		"requests_accepted": h.requests.Load(),
	}
	if v := h.lastRequestAt.Load(); v > 0 {
		out["last_request_at"] = time.Unix(0, v).UTC()
	}
	return out
}
