package service

import (
	"lingopeer_backend/internal/model"
	"lingopeer_backend/pkg/logger"
	"sync"

	"go.uber.org/zap"
)

type AdvanceAction string

const (
	ActionStay         AdvanceAction = "stay"          // 模块未完成，留在原地
	ActionNavigate     AdvanceAction = "navigate"      // 自动进入下一模块
	ActionUpgrade      AdvanceAction = "upgrade"       // 下一模块超出免费范围，引导报名
	ActionCourseReview AdvanceAction = "course_review" // 课程已全部完成，提示课程评价（一次性）
)

// AdvanceDecision 模块完成后的去向决策
type AdvanceDecision struct {
	Action          AdvanceAction `json:"action"`
	ModuleComplete  bool          `json:"moduleComplete"`
	CourseID        uint          `json:"courseId"`
	NextModuleID    uint          `json:"nextModuleId,omitempty"`
	NextModuleIndex int           `json:"nextModuleIndex,omitempty"`
}

type moduleProgressBuilder interface {
	BuildModuleProgress(userID, moduleID uint) (*model.ModuleProgressState, error)
}

type enrollmentChecker interface {
	IsEnrolled(userID, courseID uint) (bool, error)
}

type courseModuleLoader interface {
	FindModule(moduleID uint) (*model.CourseModule, error)
	FindWithModules(courseID uint) (*model.Course, error)
}

// AdvancementService 把"奖励学员前进"和"在付费边界变现"合并在一个决策点上。
// 除了课程评价提示的一次性防抖外不持有任何状态。
type AdvancementService struct {
	progress    moduleProgressBuilder
	enrollments enrollmentChecker
	courses     courseModuleLoader

	mu             sync.Mutex
	reviewPrompted map[[2]uint]bool // (userId, courseId)
}

func NewAdvancementService(progress moduleProgressBuilder, enrollments enrollmentChecker, courses courseModuleLoader) *AdvancementService {
	return &AdvancementService{
		progress:       progress,
		enrollments:    enrollments,
		courses:        courses,
		reviewPrompted: make(map[[2]uint]bool),
	}
}

func (s *AdvancementService) NextStep(userID, moduleID uint) (*AdvanceDecision, error) {
	mod, err := s.courses.FindModule(moduleID)
	if err != nil {
		return nil, err
	}
	course, err := s.courses.FindWithModules(mod.CourseID)
	if err != nil {
		return nil, err
	}
	state, err := s.progress.BuildModuleProgress(userID, moduleID)
	if err != nil {
		return nil, err
	}

	decision := &AdvanceDecision{
		Action:         ActionStay,
		ModuleComplete: state.IsModuleComplete,
		CourseID:       course.ID,
	}
	if !state.IsModuleComplete {
		return decision, nil
	}

	idx := -1
	for i := range course.Modules {
		if course.Modules[i].ID == moduleID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return decision, nil
	}

	// 最后一个模块：课程完成，只提示一次课程评价
	if idx == len(course.Modules)-1 {
		key := [2]uint{userID, course.ID}
		s.mu.Lock()
		prompted := s.reviewPrompted[key]
		s.reviewPrompted[key] = true
		s.mu.Unlock()
		if !prompted {
			decision.Action = ActionCourseReview
		}
		return decision, nil
	}

	next := course.Modules[idx+1]
	decision.NextModuleID = next.ID
	decision.NextModuleIndex = idx + 1

	enrolled, err := s.enrollments.IsEnrolled(userID, course.ID)
	if err != nil {
		// 查询失败时按未报名处理，宁可多拦一次也不误放行
		logger.Log.Warn("Enrollment check failed", zap.Uint("userId", userID),
			zap.Uint("courseId", course.ID), zap.Error(err))
		enrolled = false
	}

	if enrolled || idx+1 < course.FreeModules {
		decision.Action = ActionNavigate
	} else {
		decision.Action = ActionUpgrade
	}
	return decision, nil
}
