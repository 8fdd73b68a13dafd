package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
)

// ContactHeader 玩家联系方式请求头
const ContactHeader = "X-Player-Contact"

// PlayerLookup 按编号查找玩家
type PlayerLookup func(number int) (game.Player, bool)

// PlayerAuth 玩家身份中间件：请求携带的联系方式必须与路径中的玩家一致
type PlayerAuth struct {
	lookup PlayerLookup
}

// NewPlayerAuth 创建玩家身份中间件
func NewPlayerAuth(lookup PlayerLookup) *PlayerAuth {
	return &PlayerAuth{lookup: lookup}
}

// RequirePlayer 需要玩家身份的中间件，玩家编号取自路径参数 :number
func (m *PlayerAuth) RequirePlayer() gin.HandlerFunc {
	return func(c *gin.Context) {
		number, err := strconv.Atoi(c.Param("number"))
		if err != nil || number < 1 {
			abort(c, errors.Newf(errors.ErrInvalidParam, "玩家编号无效: %q", c.Param("number")))
			return
		}

		player, ok := m.lookup(number)
		if !ok {
			abort(c, errors.Newf(errors.ErrPlayerNotFound, "玩家编号 %d", number))
			return
		}

		contact := ExtractContact(c)
		if contact == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "NO_CONTACT",
				"message": "缺少玩家联系方式",
			})
			c.Abort()
			return
		}
		if !strings.EqualFold(contact, player.Contact) {
			abort(c, errors.Newf(errors.ErrSenderMismatch, "玩家 %d", number))
			return
		}

		c.Set("player", player)
		c.Next()
	}
}

// ExtractContact 从请求中提取联系方式
func ExtractContact(c *gin.Context) string {
	// 1. 从请求头获取
	if contact := c.GetHeader(ContactHeader); contact != "" {
		return strings.TrimSpace(contact)
	}

	// 2. 从Query参数获取（WebSocket 握手无法自定义请求头）
	return strings.TrimSpace(c.Query("contact"))
}

// GetPlayer 从上下文获取已验证的玩家
func GetPlayer(c *gin.Context) (game.Player, bool) {
	if v, exists := c.Get("player"); exists {
		if p, ok := v.(game.Player); ok {
			return p, true
		}
	}
	return game.Player{}, false
}

func abort(c *gin.Context, err *errors.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus(), gin.H{
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
	})
}
