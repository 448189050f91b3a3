package handler

import (
	"net/http"
	"slices"

	realtime "anoa.com/lmsforum/internal/modules/realtime/service"
	"anoa.com/lmsforum/pkg/docstore"
	"anoa.com/lmsforum/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type RealtimeHandler struct {
	service  realtime.RealtimeService
	upgrader websocket.Upgrader
}

func NewRealtimeHandler(service realtime.RealtimeService, allowedOrigins []string) *RealtimeHandler {
	return &RealtimeHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// HandleWebSocket streams the events of one thread until the client leaves.
func (h *RealtimeHandler) HandleWebSocket(c *gin.Context) {
	threadID := c.Query("threadId")
	if !docstore.ValidKey(threadID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "threadId is required"})
		return
	}
	if !h.service.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime updates are not configured"})
		return
	}

	ctx := c.Request.Context()
	pubsub, err := h.service.SubscribeThread(ctx, threadID)
	if err != nil {
		logger.L().Errorw("failed to subscribe to thread channel", "thread_id", threadID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime updates are unavailable"})
		return
	}
	defer pubsub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.L().Warnw("failed to upgrade websocket", "error", err)
		return
	}
	defer conn.Close()

	ch := pubsub.Channel()

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			// payloads are already JSON encoded events
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				logger.L().Debugw("websocket write failed", "thread_id", threadID, "error", err)
				return
			}
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		}
	}
}
