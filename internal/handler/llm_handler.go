package handler

import (
	"errors"
	"fmt"
	"net/http"

	"dreamcatcher-llm-go/internal/model"
	"dreamcatcher-llm-go/internal/repository"
	"dreamcatcher-llm-go/internal/service"
	"dreamcatcher-llm-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// errInvalidSessionID 在会话 ID 不能安全地用作文件名时返回给客户端。
var errInvalidSessionID = errors.New("session_id 只能包含字母、数字、'_' 和 '-'，长度 1-128")

// LLMHandler 负责聊天与分析类的 API 请求。
type LLMHandler struct {
	llmService service.LLMService
}

// NewLLMHandler 创建一个新的 LLMHandler 实例。
func NewLLMHandler(llmService service.LLMService) *LLMHandler {
	return &LLMHandler{llmService: llmService}
}

// ChatRequest 定义了聊天 API 的请求体结构。
// 必填的字符串字段使用指针：字段必须出现，但允许为空字符串。
type ChatRequest struct {
	Message   *string             `json:"message" binding:"required"`
	SessionID string              `json:"session_id"`
	History   []model.ChatMessage `json:"history" binding:"omitempty,dive"`
}

// PlanAnalysisRequest 定义了计划分析 API 的请求体结构。
type PlanAnalysisRequest struct {
	PlanID      *int64 `json:"plan_id" binding:"required"`
	UserContext string `json:"user_context"`
}

// TaskGenerationRequest 定义了任务生成 API 的请求体结构。
type TaskGenerationRequest struct {
	PlanID       *int64  `json:"plan_id" binding:"required"`
	UserID       *string `json:"user_id" binding:"required"`
	Requirements *string `json:"requirements" binding:"required"`
}

// DreamAnalysisRequest 定义了梦境分析 API 的请求体结构。
type DreamAnalysisRequest struct {
	DreamDescription *string `json:"dream_description" binding:"required"`
	UserBackground   string  `json:"user_background"`
}

// Health 返回健康检查结果。检查失败时状态码仍为 200，状态体现在 status 字段。
func (h *LLMHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.llmService.HealthCheck(c.Request.Context()))
}

// Models 重新读取 provider.json 并返回全部模型。
func (h *LLMHandler) Models(c *gin.Context) {
	models, err := h.llmService.AvailableModels()
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, prefixModels, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

// resolveSessionID 返回请求中的会话 ID，缺省时生成一个新的 UUID。
func resolveSessionID(id string) (string, error) {
	if id == "" {
		return uuid.NewString(), nil
	}
	if !repository.ValidSessionID(id) {
		return "", errInvalidSessionID
	}
	return id, nil
}

// Chat 处理标准聊天：解析会话、按需加载历史、调用模型并保存更新后的历史。
func (h *LLMHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sessionID, err := resolveSessionID(req.SessionID)
	if err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	history := req.History
	if len(history) == 0 {
		history = h.llmService.LoadChatHistory(ctx, sessionID)
	}

	response, updated, err := h.llmService.ChatAssistant(ctx, *req.Message, history)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, prefixChat, err)
		return
	}
	if _, err := h.llmService.SaveChatHistory(ctx, sessionID, updated); err != nil {
		abortWithError(c, http.StatusInternalServerError, prefixChat, err)
		return
	}

	log.Infow("聊天完成", "session_id", sessionID, "history_len", len(updated))
	c.JSON(http.StatusOK, gin.H{
		"response":   response,
		"session_id": sessionID,
		"timestamp":  timestamp(),
	})
}

// AnalyzePlan 处理计划分析请求。
func (h *LLMHandler) AnalyzePlan(c *gin.Context) {
	var req PlanAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.llmService.AnalyzePlan(c.Request.Context(), *req.PlanID, req.UserContext)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, prefixAnalyzePlan, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GenerateTasks 处理任务生成请求。
func (h *LLMHandler) GenerateTasks(c *gin.Context) {
	var req TaskGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.llmService.GenerateTasks(c.Request.Context(), *req.PlanID, *req.UserID, *req.Requirements)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, prefixGenerateTasks, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AnalyzeDream 处理梦境分析请求。
func (h *LLMHandler) AnalyzeDream(c *gin.Context) {
	var req DreamAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.llmService.AnalyzeDream(c.Request.Context(), *req.DreamDescription, req.UserBackground)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, prefixAnalyzeDream, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var (
	localFeatures  = []string{"计划分析", "任务生成", "梦境分析", "智能聊天", "工具调用"}
	localEndpoints = []string{
		"/api/v1/llm/health",
		"/api/v1/llm/chat",
		"/api/v1/llm/analyze-plan",
		"/api/v1/llm/generate-tasks",
		"/api/v1/llm/analyze-dream",
	}
)

// LocalStatus 汇总健康状态、模型列表与固定的功能清单。
func (h *LLMHandler) LocalStatus(c *gin.Context) {
	health := h.llmService.HealthCheck(c.Request.Context())
	models, err := h.llmService.AvailableModels()
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, prefixStatus, fmt.Errorf("读取模型列表: %w", err))
		return
	}
	sessions, err := h.llmService.Sessions(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, prefixStatus, fmt.Errorf("读取会话列表: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"service_name":     "DreamCatcher LLM Service",
		"status":           health.Status,
		"available_models": models,
		"features":         localFeatures,
		"endpoints":        localEndpoints,
		"session_count":    len(sessions),
		"timestamp":        timestamp(),
	})
}
