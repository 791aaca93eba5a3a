package service

import (
	"encoding/json"
	"lingopeer_backend/internal/model"
	"lingopeer_backend/internal/repository"
	"lingopeer_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AnswerSnapshot 进度推导用的答题快照，nil 表示该练习从未作答
type AnswerSnapshot struct {
	Answers     []string
	IsCorrect   bool
	IsSubmitted bool
}

// exerciseSatisfied 判断单个练习是否"已满足"（可以前进到下一题）。
// 注意满足 ≠ 完成：模块完成要求每题 IsCorrect，见 IsModuleComplete。
func exerciseSatisfied(exercise *model.Exercise, answer *AnswerSnapshot) bool {
	if answer == nil {
		return false
	}

	switch exercise.Kind {
	case model.FillBlank:
		blanks := exercise.BlankAnswers()
		if len(answer.Answers) != len(blanks) {
			return false
		}
		for _, a := range answer.Answers {
			if strings.TrimSpace(a) == "" {
				return false
			}
		}
		// 已提交但答错的不算满足，学员必须重做
		if answer.IsSubmitted && !answer.IsCorrect {
			return false
		}
		return true
	case model.LiveCall:
		// 完成通话本身即视为满足，评分结果是次要信号
		return answer.IsCorrect || answer.IsSubmitted
	default:
		if answer.IsCorrect {
			return true
		}
		for _, a := range answer.Answers {
			if strings.TrimSpace(a) != "" {
				return true
			}
		}
		return false
	}
}

// ComputeActiveIndex 返回学员当前应当停留的练习下标：
// 第一个未满足的练习；全部满足时停在最后一题。
func ComputeActiveIndex(exercises []model.Exercise, answers []*AnswerSnapshot) int {
	for i := range exercises {
		var answer *AnswerSnapshot
		if i < len(answers) {
			answer = answers[i]
		}
		if !exerciseSatisfied(&exercises[i], answer) {
			return i
		}
	}
	if len(exercises) == 0 {
		return 0
	}
	return len(exercises) - 1
}

// IsModuleComplete 比"满足"更严格：每道练习都必须 IsCorrect
func IsModuleComplete(exercises []model.Exercise, answers []*AnswerSnapshot) bool {
	if len(exercises) == 0 {
		return false
	}
	for i := range exercises {
		if i >= len(answers) || answers[i] == nil || !answers[i].IsCorrect {
			return false
		}
	}
	return true
}

// ProgressionService 按需从答题记录推导模块进度；推导结果永不缓存落库，
// 避免存储答案与派生状态漂移
type ProgressionService struct {
	CourseRepo   *repository.CourseRepository
	AnswerRepo   *repository.ExerciseAnswerRepository
	ProgressRepo *repository.ProgressRepository
}

func NewProgressionService(courseRepo *repository.CourseRepository, answerRepo *repository.ExerciseAnswerRepository, progressRepo *repository.ProgressRepository) *ProgressionService {
	return &ProgressionService{
		CourseRepo:   courseRepo,
		AnswerRepo:   answerRepo,
		ProgressRepo: progressRepo,
	}
}

// BuildModuleProgress 拉取模块练习与答题槽位并计算进度。
// 单个槽位读取失败按"未作答"降级，宁可低估进度也绝不误报完成。
func (s *ProgressionService) BuildModuleProgress(userID, moduleID uint) (*model.ModuleProgressState, error) {
	mod, err := s.CourseRepo.FindModule(moduleID)
	if err != nil {
		return nil, err
	}

	answers := make([]*AnswerSnapshot, len(mod.Exercises))
	for i := range mod.Exercises {
		record, err := s.AnswerRepo.FindSlot(userID, moduleID, mod.Exercises[i].Index)
		if err != nil {
			if err != gorm.ErrRecordNotFound {
				logger.Log.Warn("Answer fetch failed, treating slot as unanswered",
					zap.Uint("userId", userID), zap.Uint("moduleId", moduleID),
					zap.Int("exerciseIndex", mod.Exercises[i].Index), zap.Error(err))
			}
			continue
		}
		answers[i] = &AnswerSnapshot{
			Answers:     record.AnswerList(),
			IsCorrect:   record.IsCorrect,
			IsSubmitted: record.IsSubmitted,
		}
	}

	satisfied := make([]bool, len(mod.Exercises))
	for i := range mod.Exercises {
		satisfied[i] = exerciseSatisfied(&mod.Exercises[i], answers[i])
	}

	return &model.ModuleProgressState{
		ModuleID:            moduleID,
		ActiveExerciseIndex: ComputeActiveIndex(mod.Exercises, answers),
		IsModuleComplete:    IsModuleComplete(mod.Exercises, answers),
		ExerciseCount:       len(mod.Exercises),
		Satisfied:           satisfied,
	}, nil
}

// SaveSnapshot 持久化一份只写的看板快照
func (s *ProgressionService) SaveSnapshot(userID uint, state *model.ModuleProgressState) error {
	return s.ProgressRepo.CreateSnapshot(&model.ModuleProgressSnapshot{
		UserID:              userID,
		ModuleID:            state.ModuleID,
		ActiveExerciseIndex: state.ActiveExerciseIndex,
		IsModuleComplete:    state.IsModuleComplete,
	})
}

// ListSnapshots 返回学员近期的进度快照，供看板展示
func (s *ProgressionService) ListSnapshots(userID uint, limit int) ([]model.ModuleProgressSnapshot, error) {
	return s.ProgressRepo.ListByUser(userID, limit)
}

// ListModuleAnswers 返回学员在模块内的全部答题记录
func (s *ProgressionService) ListModuleAnswers(userID, moduleID uint) ([]model.ExerciseAnswer, error) {
	return s.AnswerRepo.ListByModule(userID, moduleID)
}

// SubmitAnswer 覆盖写入答题记录；填空题由服务端判分
func (s *ProgressionService) SubmitAnswer(userID, moduleID uint, exerciseIndex int, answers []string, submitted bool) (*model.ExerciseAnswer, error) {
	exercise, err := s.CourseRepo.FindExercise(moduleID, exerciseIndex)
	if err != nil {
		return nil, err
	}

	record := &model.ExerciseAnswer{
		UserID:        userID,
		ModuleID:      moduleID,
		ExerciseIndex: exerciseIndex,
		IsSubmitted:   submitted,
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}
	record.Answers = string(raw)

	switch exercise.Kind {
	case model.FillBlank:
		record.IsCorrect = gradeFillBlank(exercise, answers)
	case model.LiveCall:
		// 通话练习的 IsCorrect 由互评审批驱动，这里只记录提交
		record.IsCorrect = false
	default:
		record.IsCorrect = submitted && len(answers) > 0
	}

	if err := s.AnswerRepo.Upsert(record); err != nil {
		return nil, err
	}
	return record, nil
}

// gradeFillBlank 每个空位与可接受答案做大小写无关的精确比对
func gradeFillBlank(exercise *model.Exercise, answers []string) bool {
	blanks := exercise.BlankAnswers()
	if len(blanks) == 0 || len(answers) != len(blanks) {
		return false
	}
	for i, accepted := range blanks {
		given := strings.ToLower(strings.TrimSpace(answers[i]))
		match := false
		for _, want := range accepted {
			if given == strings.ToLower(strings.TrimSpace(want)) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}
