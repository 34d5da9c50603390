package middleware

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// MCPSessionHeader 是 MCP streamable HTTP 传输使用的会话头。
const MCPSessionHeader = "Mcp-Session-Id"

// CORS 返回处理跨域请求头的中间件。allowedOrigins 中的 "*" 表示允许任意来源，
// 显式列出的来源允许携带凭证，通配符匹配的来源不允许。
// 显式来源必须带 http:// 或 https:// 前缀。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	var explicit []string
	wildcard := false
	for _, o := range allowedOrigins {
		switch o {
		case "":
		case "*":
			wildcard = true
		default:
			explicit = append(explicit, o)
		}
	}

	base := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", RequestIDHeader, MCPSessionHeader},
		ExposeHeaders: []string{RequestIDHeader, MCPSessionHeader},
		MaxAge:        12 * time.Hour,
	}

	var withCredentials, anyOrigin gin.HandlerFunc
	if len(explicit) > 0 {
		cfg := base
		cfg.AllowOrigins = explicit
		cfg.AllowCredentials = true
		withCredentials = cors.New(cfg)
	}
	if wildcard {
		cfg := base
		cfg.AllowAllOrigins = true
		anyOrigin = cors.New(cfg)
	}

	return func(c *gin.Context) {
		switch {
		case withCredentials != nil && (anyOrigin == nil || slices.Contains(explicit, c.GetHeader("Origin"))):
			withCredentials(c)
		case anyOrigin != nil:
			anyOrigin(c)
		}
	}
}
