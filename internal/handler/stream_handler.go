package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dreamcatcher-llm-go/internal/service"
	"dreamcatcher-llm-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// DefaultTokenDelay 是相邻两个流式分片之间的间隔。
const DefaultTokenDelay = 50 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源，跨域由 CORS 中间件控制
	},
}

// StreamChatRequest 定义了流式聊天的请求体结构，HTTP 与 WebSocket 共用。
type StreamChatRequest struct {
	Message   *string `json:"message" binding:"required"`
	SessionID string  `json:"session_id"`
}

// StreamChunk 是一个内容分片。
type StreamChunk struct {
	Content   string `json:"content"`
	SessionID string `json:"session_id"`
	Finished  bool   `json:"finished"`
}

// StreamError 是流中唯一的错误分片，总是结束流。
type StreamError struct {
	Error     string `json:"error"`
	SessionID string `json:"session_id"`
	Finished  bool   `json:"finished"`
}

// StreamHandler 提供流式聊天接口。
//
// 这是一个兼容层：模型先生成完整回复，再按空白切分成词逐个推送，
// 并不是真正的增量生成。历史在最后一个分片推送之后保存。
type StreamHandler struct {
	llmService service.LLMService
	tokenDelay time.Duration
}

// NewStreamHandler 创建一个新的 StreamHandler，tokenDelay <= 0 时使用 DefaultTokenDelay。
func NewStreamHandler(llmService service.LLMService, tokenDelay time.Duration) *StreamHandler {
	if tokenDelay <= 0 {
		tokenDelay = DefaultTokenDelay
	}
	return &StreamHandler{llmService: llmService, tokenDelay: tokenDelay}
}

// StreamChat 以 text/event-stream 推送分片，每个分片是一行 "data: <json>"。
func (h *StreamHandler) StreamChat(c *gin.Context) {
	var req StreamChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sessionID, err := resolveSessionID(req.SessionID)
	if err != nil {
		badRequest(c, err)
		return
	}
	// 开始推送之后就无法再改状态码，接口不可用在这里直接返回 500
	if err := h.llmService.Ready(); err != nil {
		abortWithError(c, http.StatusInternalServerError, prefixStreamChat, err)
		return
	}

	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	emit := func(chunk any) error {
		b, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", b); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}
	h.stream(c.Request.Context(), sessionID, *req.Message, emit)
}

// StreamChatWS 在 WebSocket 上提供同样的分片流。客户端每发送一个 StreamChatRequest，
// 服务端推送对应的分片帧，连接可复用。
func (h *StreamHandler) StreamChatWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	emit := func(chunk any) error {
		return conn.WriteJSON(chunk)
	}
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		var req StreamChatRequest
		if err := json.Unmarshal(message, &req); err != nil || req.Message == nil {
			detail := "缺少 message 字段"
			if err != nil {
				detail = err.Error()
			}
			_ = emit(StreamError{Error: prefixBadRequest + ": " + detail, SessionID: req.SessionID, Finished: true})
			continue
		}
		sessionID, err := resolveSessionID(req.SessionID)
		if err != nil {
			_ = emit(StreamError{Error: prefixBadRequest + ": " + err.Error(), SessionID: req.SessionID, Finished: true})
			continue
		}
		if err := h.llmService.Ready(); err != nil {
			_ = emit(StreamError{Error: prefixStreamChat + ": " + err.Error(), SessionID: sessionID, Finished: true})
			continue
		}
		h.stream(ctx, sessionID, *req.Message, emit)
	}
}

// stream 生成完整回复后按词推送，最后保存历史。
// 推送失败（通常是客户端断开）时停止推送，但历史仍会保存。
func (h *StreamHandler) stream(ctx context.Context, sessionID, message string, emit func(chunk any) error) {
	history := h.llmService.LoadChatHistory(ctx, sessionID)
	response, updated, err := h.llmService.ChatAssistant(ctx, message, history)
	if err != nil {
		log.Errorf("流式聊天失败, session_id=%s: %v", sessionID, err)
		_ = emit(StreamError{Error: err.Error(), SessionID: sessionID, Finished: true})
		return
	}

	words := strings.Fields(response)
	if len(words) == 0 {
		_ = emit(StreamChunk{Content: "", SessionID: sessionID, Finished: true})
	}
	for i, word := range words {
		chunk := StreamChunk{Content: word + " ", SessionID: sessionID, Finished: i == len(words)-1}
		if err := emit(chunk); err != nil {
			log.Warnw("流式推送中断", "session_id", sessionID, "sent", i, "error", err)
			break
		}
		if !h.pause(ctx) {
			log.Warnw("客户端已断开，停止推送", "session_id", sessionID, "sent", i+1)
			break
		}
	}

	// 客户端断开后请求上下文已取消，保存使用不随请求取消的上下文
	if _, err := h.llmService.SaveChatHistory(context.WithoutCancel(ctx), sessionID, updated); err != nil {
		log.Errorf("保存流式聊天历史失败, session_id=%s: %v", sessionID, err)
		_ = emit(StreamError{Error: err.Error(), SessionID: sessionID, Finished: true})
	}
}

// pause 等待一个分片间隔，上下文结束时返回 false。
func (h *StreamHandler) pause(ctx context.Context) bool {
	t := time.NewTimer(h.tokenDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
