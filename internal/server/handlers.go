package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/XavierBriggs/Apollo/internal/activity"
	"github.com/XavierBriggs/Apollo/internal/auth"
	"github.com/XavierBriggs/Apollo/internal/cache"
	"github.com/XavierBriggs/Apollo/internal/entitle"
	"github.com/XavierBriggs/Apollo/internal/refresh"
	"github.com/XavierBriggs/Apollo/pkg/models"
	"github.com/go-chi/chi/v5"
)

// CycleReader serves cached cycles per tier.
type CycleReader interface {
	GetCycle(ctx context.Context, tier models.Tier) (*cache.CachedCycle, error)
	Ping(ctx context.Context) error
}

// Heartbeat records viewer activity for the refresh scheduler.
type Heartbeat interface {
	RecordAccess(ctx context.Context, sessionID string, now time.Time) error
	Staleness(ctx context.Context) (time.Duration, error)
}

// Refresher triggers refresh cycles and answers task lookups.
type Refresher interface {
	Trigger(ctx context.Context, requestedBy string) string
	Status(id string) (refresh.Task, bool)
}

// Pinger reports a dependency's connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the HTTP surface's dependencies.
type Handler struct {
	cycles         CycleReader
	activity       Heartbeat
	refresher      Refresher
	db             Pinger
	rateLimits     func() models.RateLimits
	staleThreshold time.Duration
}

func NewHandler(
	cycles CycleReader,
	heartbeat Heartbeat,
	refresher Refresher,
	db Pinger,
	rateLimits func() models.RateLimits,
	staleThreshold time.Duration,
) *Handler {
	return &Handler{
		cycles:         cycles,
		activity:       heartbeat,
		refresher:      refresher,
		db:             db,
		rateLimits:     rateLimits,
		staleThreshold: staleThreshold,
	}
}

// HealthCheck reports dependency status. Degraded dependencies flip the
// overall status but the endpoint still answers 200 as long as the cache
// is reachable, since reads only need the cache.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	services := map[string]string{
		"cache":       "ok",
		"persistence": "ok",
		"upstream":    "unknown",
	}
	status := "healthy"

	cacheErr := h.cycles.Ping(ctx)
	if cacheErr != nil {
		services["cache"] = cacheErr.Error()
		status = "unhealthy"
	}

	if err := h.db.Ping(ctx); err != nil {
		services["persistence"] = err.Error()
		if status == "healthy" {
			status = "degraded"
		}
	}

	body := map[string]interface{}{
		"status":    status,
		"service":   "apollo",
		"timestamp": time.Now().UTC(),
		"services":  services,
	}

	if staleness, err := h.activity.Staleness(ctx); err == nil && staleness != activity.Never {
		body["data_age_seconds"] = int(staleness.Seconds())
	}

	if h.rateLimits != nil {
		limits := h.rateLimits()
		services["upstream"] = "ok"
		if limits.RequestsRemaining == 0 && limits.RequestsUsed > 0 {
			services["upstream"] = "quota exhausted"
		}
		body["upstream_requests_remaining"] = limits.RequestsRemaining
		body["upstream_requests_used"] = limits.RequestsUsed
	}

	code := http.StatusOK
	if cacheErr != nil {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, body)
}

// GetOpportunities serves the caller's tier of the latest cycle.
// Query params: search, sport, limit.
func (h *Handler) GetOpportunities(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tier := h.requestTier(r)
	h.recordHeartbeat(ctx, r)

	cycle, err := h.cycles.GetCycle(ctx, tier)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errInternal, "cache read failed", err)
		return
	}

	if cycle == nil {
		// First cycle has not landed yet.
		w.Header().Set("Retry-After", "5")
		respondError(w, http.StatusServiceUnavailable, errWarmingUp, "data is being prepared, retry shortly", nil)
		return
	}

	search := r.URL.Query().Get("search")
	sport := r.URL.Query().Get("sport")
	limit, err := parseIntParam(r, "limit", 0)
	if err != nil || limit < 0 {
		respondError(w, http.StatusBadRequest, errValidationFailed, "limit must be a non-negative integer", err)
		return
	}

	opportunities := entitle.ApplyQuery(cycle.Opportunities, search, sport, limit)

	age := time.Since(cycle.RefreshedAt)
	stale := age >= h.staleThreshold
	if stale {
		// Serve what we have and kick a refresh behind the response.
		h.refresher.Trigger(context.WithoutCancel(ctx), "stale-read")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"opportunities":       opportunities,
		"total_before_filter": len(cycle.Opportunities),
		"total_after_filter":  len(opportunities),
		"filtered":            len(opportunities) != len(cycle.Opportunities),
		"user_role":           tier,
		"cycle_id":            cycle.CycleID,
		"last_refresh_ts":     cycle.RefreshedAt,
		"stale":               stale,
	})
}

// TriggerRefresh starts a manual cycle. Admin only; a trigger landing
// during a running cycle returns that cycle's task id.
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	taskID := h.refresher.Trigger(context.WithoutCancel(r.Context()), "admin:"+identity.UserID)
	respondJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// GetRefreshTask reports the status of a triggered refresh.
func (h *Handler) GetRefreshTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, ok := h.refresher.Status(taskID)
	if !ok {
		respondError(w, http.StatusNotFound, errNotFound, "unknown task id", nil)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// requestTier resolves the entitlement tier for this request.
func (h *Handler) requestTier(r *http.Request) models.Tier {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return models.TierFree
	}
	return auth.EffectiveTier(identity)
}

// recordHeartbeat marks this viewer active. Failures are invisible to the
// caller; the scheduler just sees slightly less activity.
func (h *Handler) recordHeartbeat(ctx context.Context, r *http.Request) {
	userID := ""
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		userID = identity.UserID
	}

	sessionID := activity.SessionID(userID, clientIP(r), r.UserAgent())
	if err := h.activity.RecordAccess(ctx, sessionID, time.Now().UTC()); err != nil {
		fmt.Printf("⚠ heartbeat record failed: %v\n", err)
	}
}

// clientIP trusts RealIP middleware to have rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	return r.RemoteAddr
}
