package logger

import (
	"encoding/json"
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

func findHTTPLog(entries []observer.LoggedEntry) *observer.LoggedEntry {
	for i := range entries {
		if entries[i].Message == "HTTP Request" {
			return &entries[i]
		}
	}
	return nil
}

func TestGinMiddleware_LevelByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusUnprocessableEntity, zapcore.WarnLevel},
		{http.StatusInternalServerError, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)

			router := gin.New()
			router.Use(func(c *gin.Context) { c.Set(GinRequestIDKey, "req-7") })
			router.Use(GinMiddleware(zap.New(core)))
			router.GET("/invoices", func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices?status=posted", nil))

			entry := findHTTPLog(recorded.All())
			require.NotNil(t, entry)
			assert.Equal(t, tt.level, entry.Level)
			fields := entry.ContextMap()
			assert.Equal(t, "req-7", fields["request_id"])
			assert.Equal(t, "status=posted", fields["query"])
			assert.Equal(t, int64(tt.status), fields["status"])
		})
	}
}

func TestGinMiddleware_StoresRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, _ := observer.New(zapcore.InfoLevel)

	var fromGin, fromRequest *zap.Logger
	router := gin.New()
	router.Use(GinMiddleware(zap.New(core)))
	router.GET("/x", func(c *gin.Context) {
		fromGin = GetGinLogger(c)
		fromRequest = FromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	require.NotNil(t, fromGin)
	assert.Same(t, fromGin, fromRequest)
}

func TestGetGinLogger_NotSet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)

	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set(GinRequestIDKey, "req-9") })
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code      string `json:"code"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "ERR_INTERNAL", body.Error.Code)
	assert.Equal(t, "req-9", body.Error.RequestID)

	require.Len(t, recorded.All(), 1)
	assert.Equal(t, "Panic recovered", recorded.All()[0].Message)
}
