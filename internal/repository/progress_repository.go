package repository

import (
	"lingopeer_backend/internal/model"

	"gorm.io/gorm"
)

// ProgressRepository 仅负责看板进度快照的写入与浏览，
// 完成判定永远由答题记录实时推导，不从这里读取
type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) CreateSnapshot(snapshot *model.ModuleProgressSnapshot) error {
	return r.DB.Create(snapshot).Error
}

func (r *ProgressRepository) ListByUser(userID uint, limit int) ([]model.ModuleProgressSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	var snapshots []model.ModuleProgressSnapshot
	err := r.DB.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&snapshots).Error
	return snapshots, err
}
