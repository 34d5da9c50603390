package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers 汇总了 /api/v1/llm 下的所有控制器。
type Handlers struct {
	LLM     *LLMHandler
	Stream  *StreamHandler
	MCP     *MCPHandler
	Session *SessionHandler
	// MCPServer 是 streamable HTTP 传输的 MCP 服务，为 nil 时不挂载 /mcp。
	MCPServer http.Handler
}

// RegisterLLMRoutes 在 g 上注册全部路由。
func RegisterLLMRoutes(g *gin.RouterGroup, h Handlers) {
	g.GET("/health", h.LLM.Health)
	g.GET("/models", h.LLM.Models)
	g.POST("/chat", h.LLM.Chat)
	g.POST("/stream-chat", h.Stream.StreamChat)
	g.GET("/ws/stream-chat", h.Stream.StreamChatWS)

	g.POST("/analyze-plan", h.LLM.AnalyzePlan)
	g.POST("/generate-tasks", h.LLM.GenerateTasks)
	g.POST("/analyze-dream", h.LLM.AnalyzeDream)

	mcp := g.Group("/mcp")
	{
		mcp.GET("/tools/list", h.MCP.ListTools)
		mcp.POST("/tools/call", h.MCP.CallTool)
	}
	if h.MCPServer != nil {
		g.Any("/mcp", gin.WrapH(h.MCPServer))
	}

	g.GET("/local/status", h.LLM.LocalStatus)

	sessions := g.Group("/sessions")
	{
		sessions.GET("/:id/history", h.Session.History)
		sessions.DELETE("/:id", h.Session.Delete)
	}
}
