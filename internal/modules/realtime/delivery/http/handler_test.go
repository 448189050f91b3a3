package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	realtime "anoa.com/lmsforum/internal/modules/realtime/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewRealtimeHandler(realtime.NewRealtimeService(nil), []string{"http://localhost:3000"})
	r := gin.New()
	r.GET("/forum/ws", h.HandleWebSocket)
	return r
}

func TestWebSocketWithoutRedis(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/forum/ws?threadId=t1", nil)
	newRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWebSocketRequiresThread(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/forum/ws", nil)
	newRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
