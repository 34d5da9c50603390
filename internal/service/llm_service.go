// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dreamcatcher-llm-go/internal/model"
	"dreamcatcher-llm-go/internal/repository"
	"dreamcatcher-llm-go/internal/tools"
	"dreamcatcher-llm-go/pkg/events"
	"dreamcatcher-llm-go/pkg/llm"
	"dreamcatcher-llm-go/pkg/log"
)

// ErrInterfaceNotInitialized 表示启动时未能构造 LLM 接口，所有依赖模型的操作都会立即失败。
var ErrInterfaceNotInitialized = errors.New("LLM 接口未初始化")

const (
	healthProbeMessage = "你好"
	healthPreviewRunes = 100
	publishTimeout     = 3 * time.Second
)

// EventPublisher 发布分析完成事件，kafka.Producer 满足该接口。
type EventPublisher interface {
	Publish(ctx context.Context, event events.AnalysisEvent) error
}

// LLMService 定义了全部 LLM 相关操作以及聊天历史的读写。
type LLMService interface {
	// Ready 在接口不可用时返回 ErrInterfaceNotInitialized。
	Ready() error
	AnalyzePlan(ctx context.Context, planID int64, userContext string) (*model.PlanAnalysis, error)
	GenerateTasks(ctx context.Context, planID int64, userID, requirements string) (*model.TaskGeneration, error)
	AnalyzeDream(ctx context.Context, description, background string) (*model.DreamAnalysis, error)
	// ChatAssistant 返回一次回复以及追加了本轮问答的历史。
	ChatAssistant(ctx context.Context, message string, history []model.ChatMessage) (string, []model.ChatMessage, error)
	HealthCheck(ctx context.Context) model.HealthStatus
	AvailableModels() ([]string, error)
	SaveChatHistory(ctx context.Context, sessionID string, history []model.ChatMessage) (string, error)
	LoadChatHistory(ctx context.Context, sessionID string) []model.ChatMessage
	// Sessions 列出已有快照的会话。
	Sessions(ctx context.Context) ([]string, error)
}

// Options 是 LLMService 的调用参数。
type Options struct {
	ProviderFile  string
	MaxToolRounds int
}

type llmService struct {
	iface     llm.Interface
	registry  *tools.Registry
	history   repository.HistoryRepository
	publisher EventPublisher
	opts      Options
}

// NewLLMService 创建一个新的 LLMService 实例。
// iface 为 nil 表示启动引导失败；publisher 为 nil 时不发布事件。
func NewLLMService(iface llm.Interface, registry *tools.Registry, history repository.HistoryRepository, publisher EventPublisher, opts Options) LLMService {
	return &llmService{
		iface:     iface,
		registry:  registry,
		history:   history,
		publisher: publisher,
		opts:      opts,
	}
}

func (s *llmService) Ready() error {
	if s.iface == nil {
		return ErrInterfaceNotInitialized
	}
	return nil
}

// AnalyzePlan 分析计划，并校验可行性评分落在 [1,10] 内。
func (s *llmService) AnalyzePlan(ctx context.Context, planID int64, userContext string) (*model.PlanAnalysis, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	var out model.PlanAnalysis
	err := llm.GenerateStructured(ctx, s.iface, llm.FunctionSpec{
		System:        analyzePlanSystem,
		Prompt:        fmt.Sprintf("计划ID: %d\n用户上下文: %s", planID, orNone(userContext)),
		MaxToolRounds: s.opts.MaxToolRounds,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.PlanID == 0 {
		out.PlanID = planID
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	s.publish(events.AnalysisEvent{Kind: events.KindPlanAnalysis, PlanID: planID, Result: out})
	return &out, nil
}

// GenerateTasks 基于计划生成任务，模型可调用 get_plan_data 与 get_user_context。
func (s *llmService) GenerateTasks(ctx context.Context, planID int64, userID, requirements string) (*model.TaskGeneration, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	var out model.TaskGeneration
	err := llm.GenerateStructured(ctx, s.iface, llm.FunctionSpec{
		System:        generateTasksSystem,
		Prompt:        fmt.Sprintf("计划ID: %d\n用户ID: %s\n特殊要求: %s", planID, userID, orNone(requirements)),
		Toolkit:       s.registry.Toolkit(tools.GetPlanData, tools.GetUserContext),
		MaxToolRounds: s.opts.MaxToolRounds,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.PlanID == 0 {
		out.PlanID = planID
	}
	s.publish(events.AnalysisEvent{Kind: events.KindTaskGeneration, PlanID: planID, UserID: userID, Result: out})
	return &out, nil
}

// AnalyzeDream 分析梦境，模型可调用 search_knowledge_base。
func (s *llmService) AnalyzeDream(ctx context.Context, description, background string) (*model.DreamAnalysis, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	var out model.DreamAnalysis
	err := llm.GenerateStructured(ctx, s.iface, llm.FunctionSpec{
		System:        analyzeDreamSystem,
		Prompt:        fmt.Sprintf("梦境描述: %s\n用户背景: %s", description, orNone(background)),
		Toolkit:       s.registry.Toolkit(tools.SearchKnowledgeBase),
		MaxToolRounds: s.opts.MaxToolRounds,
	}, &out)
	if err != nil {
		return nil, err
	}
	s.publish(events.AnalysisEvent{Kind: events.KindDreamAnalysis, Result: out})
	return &out, nil
}

// ChatAssistant 调用一次带工具的对话。历史的加载与保存由调用方负责。
func (s *llmService) ChatAssistant(ctx context.Context, message string, history []model.ChatMessage) (string, []model.ChatMessage, error) {
	if err := s.Ready(); err != nil {
		return "", nil, err
	}
	llmHistory := make([]llm.Message, 0, len(history))
	for _, m := range history {
		llmHistory = append(llmHistory, llm.Message{Role: m.Role, Content: m.Content})
	}

	response, updated, err := llm.Chat(ctx, s.iface, llm.ChatSpec{
		System:        chatAssistantSystem,
		Toolkit:       s.registry.Toolkit(tools.GetPlanData, tools.SearchKnowledgeBase),
		MaxToolRounds: s.opts.MaxToolRounds,
	}, message, llmHistory)
	if err != nil {
		return "", nil, err
	}

	now := model.NowISO()
	out := make([]model.ChatMessage, 0, len(updated))
	for i, m := range updated {
		ts := now
		if i < len(history) {
			ts = history[i].Timestamp
		}
		out = append(out, model.ChatMessage{Role: m.Role, Content: m.Content, Timestamp: ts})
	}
	return response, out, nil
}

// HealthCheck 通过一次真实的测试对话判断服务是否可用。
func (s *llmService) HealthCheck(ctx context.Context) model.HealthStatus {
	if s.iface == nil {
		return model.HealthStatus{Status: model.StatusError, Message: ErrInterfaceNotInitialized.Error()}
	}
	response, _, err := s.ChatAssistant(ctx, healthProbeMessage, nil)
	if err != nil {
		return model.HealthStatus{Status: model.StatusError, Message: "功能测试失败: " + err.Error()}
	}
	preview := truncateRunes(response, healthPreviewRunes)
	return model.HealthStatus{
		Status:       model.StatusHealthy,
		Message:      "LLM 服务运行正常",
		TestResponse: &preview,
	}
}

// AvailableModels 每次调用都重新读取 provider.json。
func (s *llmService) AvailableModels() ([]string, error) {
	providers, err := llm.LoadProviders(s.opts.ProviderFile)
	if err != nil {
		return nil, err
	}
	return llm.ModelNames(providers), nil
}

func (s *llmService) SaveChatHistory(ctx context.Context, sessionID string, history []model.ChatMessage) (string, error) {
	return s.history.Save(ctx, sessionID, history)
}

func (s *llmService) LoadChatHistory(ctx context.Context, sessionID string) []model.ChatMessage {
	return s.history.Load(ctx, sessionID)
}

func (s *llmService) Sessions(ctx context.Context) ([]string, error) {
	return s.history.Sessions(ctx)
}

// publish 在后台使用独立的短超时上下文发布事件，不阻塞请求，失败只记录日志。
func (s *llmService) publish(event events.AnalysisEvent) {
	if s.publisher == nil {
		return
	}
	event.Model = s.iface.Name()
	event.CreatedAt = time.Now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Warnw("发布分析事件失败", "kind", event.Kind, "error", err)
		}
	}()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
