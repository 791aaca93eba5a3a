package service

import (
	"lingopeer_backend/internal/model"
	"lingopeer_backend/internal/repository"
	"lingopeer_backend/internal/util"
	"lingopeer_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubmitEvaluationInput 通话结束后评价人提交的互评内容
type SubmitEvaluationInput struct {
	SessionID       string `json:"sessionId" binding:"required"`
	EvaluatedUserID uint   `json:"evaluatedUserId" binding:"required"`
	ModuleID        uint   `json:"moduleId"`
	ExerciseIndex   int    `json:"exerciseIndex"`
	Grammar         int    `json:"grammar"`
	Vocabulary      int    `json:"vocabulary"`
	Pronunciation   int    `json:"pronunciation"`
	Approved        bool   `json:"approved"`
	Feedback        string `json:"feedback"`
}

type EvaluationService struct {
	EvalRepo   *repository.PeerEvaluationRepository
	AnswerRepo *repository.ExerciseAnswerRepository
}

func NewEvaluationService(evalRepo *repository.PeerEvaluationRepository, answerRepo *repository.ExerciseAnswerRepository) *EvaluationService {
	return &EvaluationService{
		EvalRepo:   evalRepo,
		AnswerRepo: answerRepo,
	}
}

// Submit 每个 (通话, 评价人) 只接受一次提交。
// 提交失败可重试，且不会回滚已经结束的通话。
func (s *EvaluationService) Submit(evaluatorID uint, input SubmitEvaluationInput) (*model.PeerEvaluation, error) {
	if evaluatorID == input.EvaluatedUserID {
		return nil, util.ErrSelfEvaluation
	}
	for _, rating := range []int{input.Grammar, input.Vocabulary, input.Pronunciation} {
		if rating < 1 || rating > 5 {
			return nil, util.ErrInvalidRating
		}
	}

	if _, err := s.EvalRepo.FindBySessionAndEvaluator(input.SessionID, evaluatorID); err == nil {
		return nil, util.ErrEvaluationExists
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	eval := &model.PeerEvaluation{
		SessionID:       input.SessionID,
		EvaluatorID:     evaluatorID,
		EvaluatedUserID: input.EvaluatedUserID,
		ModuleID:        input.ModuleID,
		ExerciseIndex:   input.ExerciseIndex,
		Grammar:         input.Grammar,
		Vocabulary:      input.Vocabulary,
		Pronunciation:   input.Pronunciation,
		Approved:        input.Approved,
		Feedback:        input.Feedback,
	}
	if err := s.EvalRepo.Create(eval); err != nil {
		return nil, err
	}

	// 互评结果驱动被评价人通话练习的答题槽位，让进度引擎看到通话结果。
	// 这是尽力而为的副作用：失败只记录，不影响评价本身。
	s.markLiveCallAnswer(eval)

	return eval, nil
}

func (s *EvaluationService) markLiveCallAnswer(eval *model.PeerEvaluation) {
	if eval.ModuleID == 0 {
		return
	}
	record := &model.ExerciseAnswer{
		UserID:        eval.EvaluatedUserID,
		ModuleID:      eval.ModuleID,
		ExerciseIndex: eval.ExerciseIndex,
		Answers:       "[]",
		IsSubmitted:   true,
		IsCorrect:     eval.Approved,
	}
	if existing, err := s.AnswerRepo.FindSlot(eval.EvaluatedUserID, eval.ModuleID, eval.ExerciseIndex); err == nil {
		record.Answers = existing.Answers
	}
	if err := s.AnswerRepo.Upsert(record); err != nil {
		logger.Log.Warn("Failed to mark live-call answer after evaluation",
			zap.String("sessionId", eval.SessionID),
			zap.Uint("evaluatedUserId", eval.EvaluatedUserID), zap.Error(err))
	}
}

// ListForUser 被评价人在模块页可见的累积互评反馈
func (s *EvaluationService) ListForUser(userID, moduleID uint) ([]model.PeerEvaluation, error) {
	return s.EvalRepo.ListByEvaluatedUser(userID, moduleID)
}
