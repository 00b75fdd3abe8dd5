package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exampool/internal/config"
	"github.com/stemsi/exampool/internal/response"
)

const healthTimeout = 2 * time.Second

// Check pings one dependency.
type Check func(ctx context.Context) error

// HealthHandler reports dependency and worker queue status.
type HealthHandler struct {
	checks    map[string]Check
	rdb       redis.Cmdable // nil with the memory store
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler. rdb may be nil.
func NewHealthHandler(checks map[string]Check, rdb redis.Cmdable) *HealthHandler {
	return &HealthHandler{checks: checks, rdb: rdb, startTime: time.Now()}
}

type healthStatus struct {
	Status     string            `json:"status"`
	Uptime     string            `json:"uptime"`
	Goroutines int               `json:"goroutines"`
	Checks     map[string]string `json:"checks"`
	Queues     map[string]int64  `json:"queues,omitempty"`
}

// Health godoc
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	st := healthStatus{
		Status:     "ok",
		Uptime:     time.Since(h.startTime).Truncate(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Checks:     make(map[string]string, len(h.checks)),
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			st.Status = "degraded"
			st.Checks[name] = err.Error()
			continue
		}
		st.Checks[name] = "ok"
	}

	if h.rdb != nil {
		pipe := h.rdb.Pipeline()
		audit := pipe.LLen(ctx, config.WorkerKey.PersistAuditQueue)
		stats := pipe.LLen(ctx, config.WorkerKey.PersistQuestionStatsQueue)
		if _, err := pipe.Exec(ctx); err == nil {
			st.Queues = map[string]int64{
				config.WorkerKey.PersistAuditQueue:         audit.Val(),
				config.WorkerKey.PersistQuestionStatsQueue: stats.Val(),
			}
		}
	}

	status := http.StatusOK
	if st.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, st)
}
