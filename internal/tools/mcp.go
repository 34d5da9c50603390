package tools

import (
	"context"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer 把注册表中的全部工具注册到一个 MCP 服务器上。
func NewMCPServer(reg *Registry, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"dreamcatcher-llm",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for _, t := range reg.tools {
		s.AddTool(mcpTool(t), reg.mcpHandler(t.Name))
	}
	return s
}

// NewMCPHTTPHandler 返回通过 streamable HTTP 传输提供 MCP 协议的 http.Handler。
func NewMCPHTTPHandler(reg *Registry, version string) http.Handler {
	return server.NewStreamableHTTPServer(NewMCPServer(reg, version))
}

func mcpTool(t *Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}
	for _, p := range t.Parameters {
		popts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			popts = append(popts, mcp.Required())
		}
		switch p.Type {
		case TypeInteger:
			opts = append(opts, mcp.WithNumber(p.Name, popts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, popts...))
		}
	}
	return mcp.NewTool(t.Name, opts...)
}

// mcpHandler 适配 Registry.Call；工具错误作为 MCP 错误结果返回，而不是协议错误。
func (r *Registry) mcpHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		result, err := r.Call(ctx, name, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		text, err := resultText(result)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}
