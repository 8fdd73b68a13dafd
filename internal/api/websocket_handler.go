package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wfunc/townsquare/internal/middleware"
	ws "github.com/wfunc/townsquare/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler WebSocket处理器
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// PlayerWebSocket 玩家WebSocket连接：推送提示并接收回复
func (h *WebSocketHandler) PlayerWebSocket(c *gin.Context) {
	player, _ := middleware.GetPlayer(c)

	// 升级为WebSocket连接
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.Int("player", player.Number),
			zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, player.Number)
	if !h.hub.Register(client) {
		h.logger.Warn("Hub已停止，拒绝连接", zap.Int("player", player.Number))
		conn.Close()
		return
	}

	// 启动读写协程
	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("WebSocket连接建立",
		zap.String("client_id", client.ID),
		zap.Int("player", player.Number))
}
