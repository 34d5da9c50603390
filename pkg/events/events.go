// Package events defines the messages published to Kafka after an analysis completes.
package events

import "time"

// 事件类型
const (
	KindPlanAnalysis   = "plan_analysis"
	KindTaskGeneration = "task_generation"
	KindDreamAnalysis  = "dream_analysis"
)

// AnalysisEvent represents one completed structured LLM operation.
type AnalysisEvent struct {
	Kind      string    `json:"kind"`
	PlanID    int64     `json:"plan_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Model     string    `json:"model"`
	Result    any       `json:"result"`
	CreatedAt time.Time `json:"created_at"`
}
