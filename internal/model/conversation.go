// Package model 包含了应用的数据模型定义。
package model

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage 代表会话中的单条消息，按在历史中的位置排序。
type ChatMessage struct {
	Role      string `json:"role" binding:"required,oneof=user assistant system"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ChatSnapshot 是一次保存操作写入磁盘的完整会话快照。
// Sequence 为会话内单调递增的版本号，旧格式快照中为 0。
type ChatSnapshot struct {
	SessionID string        `json:"session_id"`
	Timestamp string        `json:"timestamp"`
	Sequence  int64         `json:"sequence,omitempty"`
	History   []ChatMessage `json:"history"`
}
