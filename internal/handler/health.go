package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/double-tu/youtube-subtitle-proxy/internal/cache"
	"github.com/double-tu/youtube-subtitle-proxy/internal/store"
)

// HealthHandler serves GET /health and GET /admin/stats (spec.md §6).
type HealthHandler struct {
	store     *store.Store
	cache     *cache.Cache
	startedAt time.Time
}

// NewHealth builds a HealthHandler.
func NewHealth(st *store.Store, c *cache.Cache) *HealthHandler {
	return &HealthHandler{store: st, cache: c, startedAt: time.Now()}
}

// Health reports database connectivity, cache counters/hit-rate, queue
// pending/processing/failed counts, and process uptime.
func (h *HealthHandler) Health(c *gin.Context) {
	dbOK := h.store.Ping() == nil

	hits, misses, _ := h.cache.Stats()
	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	pending, _ := h.store.CountByStatus(store.StatusPending)
	translating, _ := h.store.CountByStatus(store.StatusTranslating)
	failed, _ := h.store.CountByStatus(store.StatusFailed)

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"database": gin.H{
			"connected": dbOK,
		},
		"cache": gin.H{
			"hits":    hits,
			"misses":  misses,
			"hitRate": hitRate,
			"entries": h.cache.Len(),
		},
		"queue": gin.H{
			"pending":     pending,
			"translating": translating,
			"failed":      failed,
		},
		"uptimeSeconds": time.Since(h.startedAt).Seconds(),
	})
}

// AdminStats returns aggregate job counters and a small recent-jobs window,
// guarded by middleware.AdminAuth at the route level (spec.md §6
// "/admin/stats").
func (h *HealthHandler) AdminStats(c *gin.Context) {
	pending, _ := h.store.CountByStatus(store.StatusPending)
	translating, _ := h.store.CountByStatus(store.StatusTranslating)
	done, _ := h.store.CountByStatus(store.StatusDone)
	failed, _ := h.store.CountByStatus(store.StatusFailed)
	hits, misses, _ := h.cache.Stats()

	recent, err := h.store.Recent(20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs": gin.H{
			"pending":     pending,
			"translating": translating,
			"done":        done,
			"failed":      failed,
		},
		"cache": gin.H{
			"hits":   hits,
			"misses": misses,
		},
		"recent": recent,
	})
}
