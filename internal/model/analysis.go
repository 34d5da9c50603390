package model

import (
	"errors"
	"fmt"
)

// 可行性评分的取值范围
const (
	MinFeasibilityScore = 1
	MaxFeasibilityScore = 10
)

// ErrFeasibilityOutOfRange 表示模型返回的可行性评分不在 [1,10] 内。
var ErrFeasibilityOutOfRange = errors.New("feasibility_score out of range")

// PlanAnalysis 是计划分析的结构化结果。plan_id 缺省时由请求补齐，
// 评分范围由 Validate 单独校验。
type PlanAnalysis struct {
	PlanID                 int64    `json:"plan_id"`
	AnalysisSummary        string   `json:"analysis_summary" validate:"required"`
	KeyInsights            []string `json:"key_insights" validate:"required"`
	ImprovementSuggestions []string `json:"improvement_suggestions" validate:"required"`
	RiskAssessment         string   `json:"risk_assessment" validate:"required"` // 低/中/高
	FeasibilityScore       int      `json:"feasibility_score"`
}

// Validate 校验可行性评分范围。
func (p *PlanAnalysis) Validate() error {
	if p.FeasibilityScore < MinFeasibilityScore || p.FeasibilityScore > MaxFeasibilityScore {
		return fmt.Errorf("%w: %d", ErrFeasibilityOutOfRange, p.FeasibilityScore)
	}
	return nil
}

// TaskGeneration 是任务生成的结构化结果。任务与依赖的结构由模型决定。
type TaskGeneration struct {
	PlanID                  int64            `json:"plan_id"`
	GeneratedTasks          []map[string]any `json:"generated_tasks" validate:"required"`
	TaskDependencies        []map[string]any `json:"task_dependencies" validate:"required"`
	EstimatedTimeline       string           `json:"estimated_timeline" validate:"required"`
	PriorityRecommendations []string         `json:"priority_recommendations" validate:"required"`
}

// DreamAnalysis 是梦境分析的结构化结果。
type DreamAnalysis struct {
	DreamTheme            string   `json:"dream_theme" validate:"required"`
	EmotionalTone         string   `json:"emotional_tone" validate:"required"`
	SymbolicElements      []string `json:"symbolic_elements" validate:"required"`
	PsychologicalInsights []string `json:"psychological_insights" validate:"required"`
	LifeGuidance          string   `json:"life_guidance" validate:"required"`
}
