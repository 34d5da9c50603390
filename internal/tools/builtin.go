package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dreamcatcher-llm-go/internal/model"
	"dreamcatcher-llm-go/internal/repository"
	"dreamcatcher-llm-go/pkg/log"
)

// 内置工具名
const (
	GetPlanData         = "get_plan_data"
	GetUserContext      = "get_user_context"
	SearchKnowledgeBase = "search_knowledge_base"
)

// PlanSource 按 ID 读取计划，repository.PlanRepository 满足该接口。
type PlanSource interface {
	FindByID(ctx context.Context, planID int64) (*model.Plan, error)
}

// KnowledgeSearcher 在外部知识库中检索，es.KnowledgeSearcher 满足该接口。
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string) (string, bool, error)
}

// Dependencies 是内置工具的可选数据源，为 nil 时使用模拟数据。
type Dependencies struct {
	Plans     PlanSource
	Knowledge KnowledgeSearcher
}

// PlanData 是 get_plan_data 的返回结构。
type PlanData struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"created_at"`
	Tasks       []string `json:"tasks"`
}

// UserContext 是 get_user_context 的返回结构。
type UserContext struct {
	UserID           string   `json:"user_id"`
	Preferences      []string `json:"preferences"`
	RecentActivities []string `json:"recent_activities"`
	SkillLevel       string   `json:"skill_level"`
}

type knowledgeItem struct {
	keyword string
	text    string
}

// 静态知识条目，按顺序匹配
var knowledgeItems = []knowledgeItem{
	{"项目管理", "项目管理最佳实践包括明确目标、合理分配资源、定期检查进度..."},
	{"梦境分析", "梦境分析是理解潜意识心理状态的重要方法，常见符号包括..."},
	{"任务规划", "有效的任务规划需要考虑优先级、依赖关系、资源约束..."},
}

// NewDefaultRegistry 注册 get_plan_data、get_user_context 与 search_knowledge_base。
func NewDefaultRegistry(deps Dependencies) *Registry {
	return NewRegistry(
		Tool{
			Name:        GetPlanData,
			Description: "获取指定计划的详细数据",
			Parameters: []Parameter{
				{Name: "plan_id", Type: TypeInteger, Description: "计划ID", Required: true},
			},
			Handler: func(ctx context.Context, args Arguments) (any, error) {
				return getPlanData(ctx, deps.Plans, args.Int("plan_id"))
			},
		},
		Tool{
			Name:        GetUserContext,
			Description: "获取用户的上下文信息",
			Parameters: []Parameter{
				{Name: "user_id", Type: TypeString, Description: "用户ID", Required: true},
			},
			Handler: func(_ context.Context, args Arguments) (any, error) {
				return getUserContext(args.String("user_id")), nil
			},
		},
		Tool{
			Name:        SearchKnowledgeBase,
			Description: "搜索知识库获取相关信息",
			Parameters: []Parameter{
				{Name: "query", Type: TypeString, Description: "搜索查询", Required: true},
			},
			Handler: func(ctx context.Context, args Arguments) (any, error) {
				return searchKnowledgeBase(ctx, deps.Knowledge, args.String("query")), nil
			},
		},
	)
}

func getPlanData(ctx context.Context, plans PlanSource, planID int64) (PlanData, error) {
	if plans != nil {
		plan, err := plans.FindByID(ctx, planID)
		switch {
		case err == nil:
			return PlanData{
				ID:          plan.ID,
				Title:       plan.Title,
				Description: plan.Description,
				Status:      plan.Status,
				CreatedAt:   plan.CreatedAt.Format("2006-01-02"),
				Tasks:       plan.Tasks,
			}, nil
		case errors.Is(err, repository.ErrPlanNotFound):
			log.Infof("计划 %d 不在数据库中，使用模拟数据", planID)
		default:
			return PlanData{}, fmt.Errorf("查询计划失败: %w", err)
		}
	}
	return PlanData{
		ID:          planID,
		Title:       fmt.Sprintf("计划 %d", planID),
		Description: fmt.Sprintf("这是计划 %d 的详细描述", planID),
		Status:      "active",
		CreatedAt:   "2024-01-01",
		Tasks:       []string{"任务1", "任务2", "任务3"},
	}, nil
}

func getUserContext(userID string) UserContext {
	return UserContext{
		UserID:           userID,
		Preferences:      []string{"高效", "创新", "协作"},
		RecentActivities: []string{"查看计划", "创建任务", "团队讨论"},
		SkillLevel:       "中级",
	}
}

func searchKnowledgeBase(ctx context.Context, searcher KnowledgeSearcher, query string) string {
	for _, item := range knowledgeItems {
		if strings.Contains(query, item.keyword) {
			return item.text
		}
	}
	if searcher != nil {
		text, found, err := searcher.Search(ctx, query)
		if err != nil {
			log.Warnw("知识库检索失败", "query", query, "error", err)
		} else if found {
			return text
		}
	}
	return fmt.Sprintf("关于 '%s' 的相关信息：这是一个需要深入研究的领域...", query)
}
