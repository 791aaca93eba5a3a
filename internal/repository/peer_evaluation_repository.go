package repository

import (
	"lingopeer_backend/internal/model"

	"gorm.io/gorm"
)

type PeerEvaluationRepository struct {
	DB *gorm.DB
}

func NewPeerEvaluationRepository(db *gorm.DB) *PeerEvaluationRepository {
	return &PeerEvaluationRepository{DB: db}
}

func (r *PeerEvaluationRepository) Create(eval *model.PeerEvaluation) error {
	return r.DB.Create(eval).Error
}

// FindBySessionAndEvaluator 检查评价人是否已对该通话提交过评价
func (r *PeerEvaluationRepository) FindBySessionAndEvaluator(sessionID string, evaluatorID uint) (*model.PeerEvaluation, error) {
	var eval model.PeerEvaluation
	err := r.DB.Where("session_id = ? AND evaluator_id = ?", sessionID, evaluatorID).First(&eval).Error
	if err != nil {
		return nil, err
	}
	return &eval, nil
}

// ListByEvaluatedUser 被评价人在某模块收到的全部评价
func (r *PeerEvaluationRepository) ListByEvaluatedUser(userID uint, moduleID uint) ([]model.PeerEvaluation, error) {
	q := r.DB.Where("evaluated_user_id = ?", userID)
	if moduleID != 0 {
		q = q.Where("module_id = ?", moduleID)
	}
	var evals []model.PeerEvaluation
	err := q.Order("created_at DESC").Find(&evals).Error
	return evals, err
}
