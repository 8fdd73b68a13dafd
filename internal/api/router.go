package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/townsquare/internal/database"
	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/middleware"
	"github.com/wfunc/townsquare/internal/phase"
	"github.com/wfunc/townsquare/internal/repository"
	ws "github.com/wfunc/townsquare/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps 路由依赖
type Deps struct {
	Repo   *repository.StateRepository
	Intake *phase.Intake
	Outbox *phase.Outbox
	Hub    *ws.Hub                  // 可选，为空时不注册 WebSocket 路由
	DB     *gorm.DB                 // 可选，用于健康检查
	Store  repository.DocumentStore // 可选，支持版本号的存储会在健康检查中报告 revision
}

// revisioner 可报告文档版本号的存储
type revisioner interface {
	Revision(ctx context.Context) (int64, error)
}

// Router API路由器
type Router struct {
	engine     *gin.Engine
	deps       Deps
	game       *GameHandler
	players    *PlayerHandler
	websocket  *WebSocketHandler
	playerAuth *middleware.PlayerAuth
	log        *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(deps Deps, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}

	// 创建Gin引擎
	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(log))

	router := &Router{
		engine:     engine,
		deps:       deps,
		game:       NewGameHandler(deps.Repo),
		players:    NewPlayerHandler(deps.Intake, deps.Outbox, log),
		playerAuth: middleware.NewPlayerAuth(deps.Intake.Player),
		log:        log,
	}
	if deps.Hub != nil {
		router.websocket = NewWebSocketHandler(deps.Hub, log)
		// WebSocket 连接已通过身份校验，发件人即玩家登记的联系方式
		deps.Hub.OnReply(func(player int, phaseName, body string) error {
			p, ok := deps.Intake.Player(player)
			if !ok {
				return errors.Newf(errors.ErrPlayerNotFound, "玩家编号 %d", player)
			}
			_, err := deps.Intake.Submit(player, phaseName, p.Contact, body)
			return err
		})
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/game", r.game.GetGame)

		phases := v1.Group("/phases")
		{
			phases.GET("", r.game.ListPhases)
			phases.GET("/:name", r.game.GetPhase)
			phases.POST("/:name/replies", r.players.SubmitReply)
		}

		players := v1.Group("/players/:number")
		players.Use(r.playerAuth.RequirePlayer())
		{
			players.GET("/prompt", r.players.GetPrompt)
		}
	}

	if r.websocket != nil {
		wsGroup := r.engine.Group("/ws")
		wsGroup.Use(r.playerAuth.RequirePlayer())
		{
			wsGroup.GET("/players/:number", r.websocket.PlayerWebSocket)
		}
	}

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    http.StatusNotFound,
			Message: "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	if r.deps.DB != nil && !database.IsConnected(r.deps.DB) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	resp := gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
		"phase":   r.deps.Repo.CurrentPhase(),
	}
	if r.deps.Hub != nil {
		resp["online_players"] = r.deps.Hub.OnlinePlayers()
	}
	if rv, ok := r.deps.Store.(revisioner); ok {
		rev, err := rv.Revision(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"message": "读取文档版本失败",
			})
			return
		}
		resp["revision"] = rev
	}
	c.JSON(http.StatusOK, resp)
}

// Server 创建 HTTP 服务器
func (r *Router) Server(addr string) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: r.engine,
	}
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
