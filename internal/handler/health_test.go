package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/double-tu/youtube-subtitle-proxy/internal/cache"
	"github.com/double-tu/youtube-subtitle-proxy/internal/middleware"
)

func TestHealthReportsOK(t *testing.T) {
	_, st, _ := newTestStack(t, jsonUpstream(`{"events":[]}`))
	c, err := cache.New(st, 100, time.Hour)
	assert.NoError(t, err)

	hh := NewHealth(st, c)

	r := gin.New()
	r.GET("/health", hh.Health)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"database"`)
	assert.Contains(t, w.Body.String(), `"queue"`)
}

func TestAdminStatsRequiresToken(t *testing.T) {
	r := gin.New()
	r.GET("/admin/stats", middleware.AdminAuth("secret"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req2.Header.Set("Authorization", "Bearer secret")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusOK, w2.Code)
}
