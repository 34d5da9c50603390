package repository

import (
	"context"
	"errors"

	"dreamcatcher-llm-go/internal/model"

	"gorm.io/gorm"
)

// ErrPlanNotFound 表示数据库中没有对应的计划。
var ErrPlanNotFound = errors.New("plan not found")

// PlanRepository 接口定义了计划数据的读取操作。
type PlanRepository interface {
	FindByID(ctx context.Context, planID int64) (*model.Plan, error)
}

// planRepository 是 PlanRepository 接口的 GORM 实现。
type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository 创建一个新的 PlanRepository 实例。
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

// FindByID 根据 ID 从数据库中查找一个计划。
func (r *planRepository) FindByID(ctx context.Context, planID int64) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.WithContext(ctx).Where("id = ?", planID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}
