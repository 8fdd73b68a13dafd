package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
	"github.com/wfunc/townsquare/internal/repository"
)

// GameHandler 游戏文档查询处理器
type GameHandler struct {
	repo *repository.StateRepository
}

// NewGameHandler 创建游戏文档查询处理器
func NewGameHandler(repo *repository.StateRepository) *GameHandler {
	return &GameHandler{repo: repo}
}

// PhaseSummary 阶段概要
type PhaseSummary struct {
	Name      string         `json:"name"`
	Type      game.PhaseType `json:"phase_type"`
	Completed bool           `json:"completed"`
	Responses int            `json:"responses"`
	Actions   int            `json:"actions"`
	Unapplied int            `json:"unapplied"`
}

// GetGame 完整游戏文档
func (h *GameHandler) GetGame(c *gin.Context) {
	c.JSON(http.StatusOK, h.repo.Document())
}

// ListPhases 按规范顺序列出已记录的阶段
func (h *GameHandler) ListPhases(c *gin.Context) {
	doc := h.repo.Document()
	ids, err := doc.SortedPhases()
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]PhaseSummary, 0, len(ids))
	for _, id := range ids {
		rec, _ := doc.Record(id.String())
		out = append(out, PhaseSummary{
			Name:      id.String(),
			Type:      id.Type(),
			Completed: rec.Completed,
			Responses: len(rec.Responses),
			Actions:   len(rec.Actions),
			Unapplied: rec.UnappliedCount(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"current": doc.Phase,
		"phases":  out,
	})
}

// GetPhase 单个阶段记录
func (h *GameHandler) GetPhase(c *gin.Context) {
	name := c.Param("name")
	if _, err := game.ParsePhase(name); err != nil {
		respondError(c, err)
		return
	}

	rec, ok := h.repo.Document().Record(name)
	if !ok {
		respondError(c, errors.Newf(errors.ErrNotFound, "阶段 %s 尚无记录", name))
		return
	}
	c.JSON(http.StatusOK, rec)
}
