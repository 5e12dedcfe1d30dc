package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedRouter(level zapcore.Level) (*gin.Engine, *observer.ObservedLogs) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(level)
	router := gin.New()
	router.Use(GinMiddleware(zap.New(core)))
	return router, recorded
}

func requestEntry(t *testing.T, recorded *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	entries := recorded.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	return entries[0]
}

func TestGinMiddleware(t *testing.T) {
	t.Run("successful requests are logged at info", func(t *testing.T) {
		router, recorded := observedRouter(zapcore.InfoLevel)
		router.GET("/billing/batches", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"data": []string{}})
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/billing/batches", nil)
		router.ServeHTTP(w, req)

		entry := requestEntry(t, recorded)
		assert.Equal(t, zapcore.InfoLevel, entry.Level)

		fields := entry.ContextMap()
		assert.Contains(t, fields, "status")
		assert.Contains(t, fields, "latency")
		assert.Contains(t, fields, "client_ip")
		assert.Equal(t, "GET", fields["method"])
		assert.Equal(t, "/billing/batches", fields["path"])
	})

	t.Run("client errors are logged at warn", func(t *testing.T) {
		router, recorded := observedRouter(zapcore.InfoLevel)
		router.GET("/billing/batches/unknown", func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/billing/batches/unknown", nil))

		assert.Equal(t, zapcore.WarnLevel, requestEntry(t, recorded).Level)
	})

	t.Run("server errors are logged at error", func(t *testing.T) {
		router, recorded := observedRouter(zapcore.InfoLevel)
		router.POST("/billing/batches", func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/billing/batches", nil))

		assert.Equal(t, zapcore.ErrorLevel, requestEntry(t, recorded).Level)
	})

	t.Run("the request id set upstream is carried on every entry", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		core, recorded := observer.New(zapcore.InfoLevel)
		router := gin.New()
		router.Use(func(c *gin.Context) {
			c.Set("request_id", "req-billing-1")
			c.Next()
		})
		router.Use(GinMiddleware(zap.New(core)))
		router.GET("/billing/batches", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/billing/batches", nil))

		assert.Equal(t, "req-billing-1", requestEntry(t, recorded).ContextMap()["request_id"])
	})

	t.Run("query strings are included when present", func(t *testing.T) {
		router, recorded := observedRouter(zapcore.InfoLevel)
		router.GET("/billing/batches", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/billing/batches?status=ready&page=1", nil))

		fields := requestEntry(t, recorded).ContextMap()
		assert.Contains(t, fields["query"], "status=ready")
	})
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)
	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/billing/batches", func(c *gin.Context) {
		panic("charge module unavailable")
	})

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/billing/batches", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	entries := recorded.FilterMessage("Panic recovered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/billing/batches", entries[0].ContextMap()["path"])
}

func TestGetGinLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("returns the request-scoped logger", func(t *testing.T) {
		core, _ := observer.New(zapcore.InfoLevel)
		var handlerLogger *zap.Logger

		router := gin.New()
		router.Use(GinMiddleware(zap.New(core)))
		router.GET("/billing/batches", func(c *gin.Context) {
			handlerLogger = GetGinLogger(c)
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/billing/batches", nil))

		assert.NotNil(t, handlerLogger)
	})

	t.Run("falls back to a no-op logger without the middleware", func(t *testing.T) {
		var handlerLogger *zap.Logger

		router := gin.New()
		router.GET("/billing/batches", func(c *gin.Context) {
			handlerLogger = GetGinLogger(c)
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/billing/batches", nil))

		require.NotNil(t, handlerLogger)
		assert.NotPanics(t, func() {
			handlerLogger.Info("unused")
		})
	})
}
