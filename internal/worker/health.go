package worker

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/gold-portfolio/internal/errors"
	"github.com/gold-portfolio/internal/models"
)

// HealthStatus is a point-in-time view of one instance's refresh outcomes
type HealthStatus struct {
	InstanceID          string     `json:"instanceId"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastErrorKind       string     `json:"lastErrorKind,omitempty"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
}

// Healthy reports whether the most recent refresh succeeded
func (s HealthStatus) Healthy() bool {
	return s.LastSuccessAt != nil && s.ConsecutiveFailures == 0
}

// RefreshHealth is a RefreshListener that remembers the latest outcomes
type RefreshHealth struct {
	now func() time.Time

	mu     sync.RWMutex
	status HealthStatus
}

// NewRefreshHealth creates a health tracker for instanceID
func NewRefreshHealth(instanceID string) *RefreshHealth {
	return &RefreshHealth{
		now:    time.Now,
		status: HealthStatus{InstanceID: instanceID},
	}
}

// OnRefreshSuccess implements RefreshListener
func (h *RefreshHealth) OnRefreshSuccess(_ context.Context, _ string, snap models.PriceSnapshot) {
	at := snap.FetchedAt
	if at.IsZero() {
		at = h.now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.status.LastSuccessAt = &at
	h.status.ConsecutiveFailures = 0
}

// OnRefreshFailure implements RefreshListener
func (h *RefreshHealth) OnRefreshFailure(_ context.Context, _ string, err error) {
	at := h.now().UTC()
	kind := ""
	if k, ok := apperrors.KindOf(err); ok {
		kind = string(k)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.status.LastFailureAt = &at
	h.status.LastError = err.Error()
	h.status.LastErrorKind = kind
	h.status.ConsecutiveFailures++
}

// Status returns a copy of the current health
func (h *RefreshHealth) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}
