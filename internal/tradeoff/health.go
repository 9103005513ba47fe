package tradeoff

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hay-kot/tradeoff/internal/core/kv"
)

const (
	healthTTL       = time.Minute
	healthNamespace = "scoring-health"
	healthKey       = "status"
)

// HealthChecker checks a scoring backend.
type HealthChecker interface {
	Health(ctx context.Context) (string, error)
}

// HealthStatus is the cached outcome of a backend check.
type HealthStatus struct {
	OK        bool      `json:"ok"`
	Message   string    `json:"message"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthService caches scoring backend checks so the TUI can show backend
// status on every start without hitting the network each time.
type HealthService struct {
	checker HealthChecker
	cache   *kv.TypedKV[HealthStatus]
	now     func() time.Time
}

// NewHealthService creates a HealthService. checker may be nil for backends
// without a health endpoint.
func NewHealthService(checker HealthChecker, store kv.KV) *HealthService {
	return &HealthService{
		checker: checker,
		cache:   kv.Scoped[HealthStatus](store, healthNamespace),
		now:     time.Now,
	}
}

// Check returns the cached status when fresh and checks the backend otherwise.
// Check failures are reported in the status, not as an error.
func (h *HealthService) Check(ctx context.Context) HealthStatus {
	if h.checker == nil {
		return HealthStatus{OK: true, Message: "no health endpoint", CheckedAt: h.now()}
	}

	if cached, ok, err := h.cache.Lookup(ctx, healthKey); err == nil && ok {
		return cached
	} else if err != nil {
		log.Debug().Err(err).Msg("health check: cache read failed")
	}

	return h.Refresh(ctx)
}

// Refresh checks the backend and caches the result.
func (h *HealthService) Refresh(ctx context.Context) HealthStatus {
	if h.checker == nil {
		return h.Check(ctx)
	}

	status := HealthStatus{CheckedAt: h.now()}
	msg, err := h.checker.Health(ctx)
	if err != nil {
		status.Message = err.Error()
	} else {
		status.OK = true
		status.Message = msg
	}

	if err := h.cache.SetTTL(ctx, healthKey, status, healthTTL); err != nil {
		log.Debug().Err(err).Msg("health check: cache write failed")
	}
	return status
}
