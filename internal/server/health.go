package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	healthStatusOK       = "ok"
	healthStatusNotReady = "not ready"
)

// HealthChecker serves the liveness and readiness probes. Readiness flips
// to false during shutdown so load balancers stop routing before the
// listener closes.
type HealthChecker struct {
	ready     atomic.Bool
	startTime time.Time
}

// NewHealthChecker returns a checker that starts out ready.
func NewHealthChecker() *HealthChecker {
	h := &HealthChecker{startTime: time.Now()}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports the readiness state.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// Liveness handles /healthz. The process answering at all means alive.
func (h *HealthChecker) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": healthStatusOK,
		"uptime": time.Since(h.startTime).Truncate(time.Second).String(),
	})
}

// Readiness handles /readyz.
func (h *HealthChecker) Readiness(c *gin.Context) {
	if !h.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": healthStatusNotReady})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": healthStatusOK})
}
