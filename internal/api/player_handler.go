package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/middleware"
	"github.com/wfunc/townsquare/internal/phase"
	"go.uber.org/zap"
)

// PlayerHandler 玩家提示与回复处理器
type PlayerHandler struct {
	intake *phase.Intake
	outbox *phase.Outbox
	log    *zap.Logger
}

// NewPlayerHandler 创建玩家处理器
func NewPlayerHandler(intake *phase.Intake, outbox *phase.Outbox, log *zap.Logger) *PlayerHandler {
	return &PlayerHandler{intake: intake, outbox: outbox, log: log}
}

// ReplyRequest 回复请求
type ReplyRequest struct {
	Player int    `json:"player" binding:"required,min=1"`
	From   string `json:"from" binding:"required"`
	Body   string `json:"body"`
}

// ReplyAccepted 回复已进入收件箱
type ReplyAccepted struct {
	ID     string `json:"id"`
	Phase  string `json:"phase"`
	Player int    `json:"player"`
}

// GetPrompt 玩家最近一次收到的提示
func (h *PlayerHandler) GetPrompt(c *gin.Context) {
	player, _ := middleware.GetPlayer(c)

	prompt, ok := h.outbox.Latest(player.Number)
	if !ok {
		respondError(c, errors.Newf(errors.ErrNotFound, "玩家 %d 尚未收到提示", player.Number))
		return
	}
	c.JSON(http.StatusOK, prompt)
}

// SubmitReply 提交当前阶段的回复
func (h *PlayerHandler) SubmitReply(c *gin.Context) {
	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.New(errors.ErrInvalidParam, err.Error()))
		return
	}

	msg, err := h.intake.Submit(req.Player, c.Param("name"), req.From, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}

	h.log.Info("收到玩家回复",
		zap.String("id", msg.ID),
		zap.String("phase", msg.Phase),
		zap.Int("player", msg.Player))

	c.JSON(http.StatusAccepted, ReplyAccepted{
		ID:     msg.ID,
		Phase:  msg.Phase,
		Player: msg.Player,
	})
}
