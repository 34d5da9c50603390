package model

// 健康状态
const (
	StatusHealthy = "healthy"
	StatusError   = "error"
)

// HealthStatus 是健康检查的结果。
type HealthStatus struct {
	Status       string  `json:"status"`
	Message      string  `json:"message"`
	TestResponse *string `json:"test_response,omitempty"`
}
