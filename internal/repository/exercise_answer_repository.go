package repository

import (
	"lingopeer_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExerciseAnswerRepository 处理练习答题记录的数据库操作
type ExerciseAnswerRepository struct {
	DB *gorm.DB
}

func NewExerciseAnswerRepository(db *gorm.DB) *ExerciseAnswerRepository {
	return &ExerciseAnswerRepository{DB: db}
}

// FindSlot 查询某个 (用户, 模块, 练习序号) 的答题记录
func (r *ExerciseAnswerRepository) FindSlot(userID, moduleID uint, exerciseIndex int) (*model.ExerciseAnswer, error) {
	var answer model.ExerciseAnswer
	err := r.DB.Where("user_id = ? AND module_id = ? AND exercise_index = ?",
		userID, moduleID, exerciseIndex).First(&answer).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

// Upsert 覆盖写入答题记录（每个槽位最后一次提交生效）
func (r *ExerciseAnswerRepository) Upsert(answer *model.ExerciseAnswer) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "module_id"}, {Name: "exercise_index"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"answers", "is_correct", "is_submitted", "updated_at",
		}),
	}).Create(answer).Error
}

func (r *ExerciseAnswerRepository) ListByModule(userID, moduleID uint) ([]model.ExerciseAnswer, error) {
	var answers []model.ExerciseAnswer
	err := r.DB.Where("user_id = ? AND module_id = ?", userID, moduleID).
		Order("exercise_index ASC").Find(&answers).Error
	return answers, err
}
