package handler

import (
	"fmt"
	"net/http"

	"dreamcatcher-llm-go/internal/repository"
	"dreamcatcher-llm-go/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionHandler 处理会话历史相关的请求。
type SessionHandler struct {
	llmService service.LLMService
}

// NewSessionHandler 创建一个新的 SessionHandler 实例。
func NewSessionHandler(llmService service.LLMService) *SessionHandler {
	return &SessionHandler{llmService: llmService}
}

// History 返回会话最新快照中的历史，没有快照时返回空列表。
func (h *SessionHandler) History(c *gin.Context) {
	sessionID := c.Param("id")
	if !repository.ValidSessionID(sessionID) {
		abortWithError(c, http.StatusBadRequest, prefixHistory, errInvalidSessionID)
		return
	}
	history := h.llmService.LoadChatHistory(c.Request.Context(), sessionID)
	c.JSON(http.StatusOK, gin.H{
		"session_id":    sessionID,
		"history":       history,
		"message_count": len(history),
	})
}

// Delete 只做确认，快照文件保持不变。
func (h *SessionHandler) Delete(c *gin.Context) {
	sessionID := c.Param("id")
	if !repository.ValidSessionID(sessionID) {
		abortWithError(c, http.StatusBadRequest, prefixDeleteSession, errInvalidSessionID)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   fmt.Sprintf("会话 %s 已删除", sessionID),
		"timestamp": timestamp(),
	})
}
