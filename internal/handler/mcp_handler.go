package handler

import (
	"errors"
	"fmt"
	"net/http"

	"dreamcatcher-llm-go/internal/tools"
	"dreamcatcher-llm-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// MCPHandler 提供工具目录与按名称调用工具的 HTTP 接口。
type MCPHandler struct {
	registry *tools.Registry
}

// NewMCPHandler 创建一个新的 MCPHandler 实例。
func NewMCPHandler(registry *tools.Registry) *MCPHandler {
	return &MCPHandler{registry: registry}
}

// ToolCallRequest 定义了工具调用 API 的请求体结构。
type ToolCallRequest struct {
	ToolName   string         `json:"tool_name" binding:"required"`
	Parameters map[string]any `json:"parameters" binding:"required"`
}

// ListTools 返回静态工具目录。
func (h *MCPHandler) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.registry.List()})
}

// CallTool 校验参数后调用工具。未知工具返回 404，参数不合法返回 400。
func (h *MCPHandler) CallTool(c *gin.Context) {
	var req ToolCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.registry.Call(c.Request.Context(), req.ToolName, req.Parameters)
	switch {
	case errors.Is(err, tools.ErrToolNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("未找到工具: %s", req.ToolName)})
		return
	case errors.Is(err, tools.ErrInvalidArguments):
		badRequest(c, err)
		return
	case err != nil:
		abortWithError(c, http.StatusInternalServerError, prefixToolCall, err)
		return
	}

	log.Infof("工具 %s 调用成功", req.ToolName)
	c.JSON(http.StatusOK, gin.H{
		"tool_name": req.ToolName,
		"result":    result,
		"timestamp": timestamp(),
	})
}
