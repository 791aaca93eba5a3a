package repository

import (
	"lingopeer_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ModuleRatingRepository struct {
	DB *gorm.DB
}

func NewModuleRatingRepository(db *gorm.DB) *ModuleRatingRepository {
	return &ModuleRatingRepository{DB: db}
}

// Upsert 用户重复评价时覆盖旧值
func (r *ModuleRatingRepository) Upsert(rating *model.ModuleRating) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "module_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(rating).Error
}

func (r *ModuleRatingRepository) Summary(moduleID uint) (*model.ModuleRatingSummary, error) {
	var summary model.ModuleRatingSummary
	err := r.DB.Model(&model.ModuleRating{}).
		Where("module_id = ? AND value = ?", moduleID, 1).
		Count(&summary.Up).Error
	if err != nil {
		return nil, err
	}
	err = r.DB.Model(&model.ModuleRating{}).
		Where("module_id = ? AND value = ?", moduleID, -1).
		Count(&summary.Down).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *ModuleRatingRepository) FindByUser(moduleID, userID uint) (*model.ModuleRating, error) {
	var rating model.ModuleRating
	err := r.DB.Where("module_id = ? AND user_id = ?", moduleID, userID).First(&rating).Error
	if err != nil {
		return nil, err
	}
	return &rating, nil
}
