package model

import "time"

// Plan 定义了 plans 表的 ORM 模型，供 get_plan_data 工具读取。
type Plan struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Status      string    `gorm:"type:varchar(32);not null;default:'active'" json:"status"`
	Tasks       []string  `gorm:"type:json;serializer:json" json:"tasks"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Plan) TableName() string {
	return "plans"
}
