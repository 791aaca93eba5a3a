package service

import (
	"errors"
	"lingopeer_backend/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProgressBuilder struct {
	complete map[uint]bool
	err      error
}

func (f *fakeProgressBuilder) BuildModuleProgress(userID, moduleID uint) (*model.ModuleProgressState, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.ModuleProgressState{
		ModuleID:         moduleID,
		IsModuleComplete: f.complete[moduleID],
	}, nil
}

type fakeEnrollments struct {
	enrolled map[uint]bool
	err      error
}

func (f *fakeEnrollments) IsEnrolled(userID, courseID uint) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.enrolled[userID], nil
}

type fakeCourseLoader struct {
	course *model.Course
}

func (f *fakeCourseLoader) FindModule(moduleID uint) (*model.CourseModule, error) {
	for i := range f.course.Modules {
		if f.course.Modules[i].ID == moduleID {
			return &f.course.Modules[i], nil
		}
	}
	return nil, errors.New("module not found")
}

func (f *fakeCourseLoader) FindWithModules(courseID uint) (*model.Course, error) {
	if f.course.ID != courseID {
		return nil, errors.New("course not found")
	}
	return f.course, nil
}

// 四个模块的课程，前三个免费
func testCourse() *model.Course {
	course := &model.Course{FreeModules: 3}
	course.ID = 10
	for i := 0; i < 4; i++ {
		mod := model.CourseModule{CourseID: 10, Order: i}
		mod.ID = uint(100 + i)
		course.Modules = append(course.Modules, mod)
	}
	return course
}

func TestNextStep_IncompleteModuleStays(t *testing.T) {
	svc := NewAdvancementService(
		&fakeProgressBuilder{complete: map[uint]bool{}},
		&fakeEnrollments{enrolled: map[uint]bool{}},
		&fakeCourseLoader{course: testCourse()},
	)

	decision, err := svc.NextStep(1, 100)
	require.NoError(t, err)
	assert.Equal(t, ActionStay, decision.Action)
	assert.False(t, decision.ModuleComplete)
}

func TestNextStep_NavigateWithinFreeTier(t *testing.T) {
	svc := NewAdvancementService(
		&fakeProgressBuilder{complete: map[uint]bool{100: true}},
		&fakeEnrollments{enrolled: map[uint]bool{}},
		&fakeCourseLoader{course: testCourse()},
	)

	decision, err := svc.NextStep(1, 100)
	require.NoError(t, err)
	assert.Equal(t, ActionNavigate, decision.Action)
	assert.Equal(t, uint(101), decision.NextModuleID)
	assert.Equal(t, 1, decision.NextModuleIndex)
}

// 未报名学员完成最后一个免费模块后引导升级
func TestNextStep_UpgradeAtPaidBoundary(t *testing.T) {
	svc := NewAdvancementService(
		&fakeProgressBuilder{complete: map[uint]bool{102: true}},
		&fakeEnrollments{enrolled: map[uint]bool{}},
		&fakeCourseLoader{course: testCourse()},
	)

	decision, err := svc.NextStep(1, 102)
	require.NoError(t, err)
	assert.Equal(t, ActionUpgrade, decision.Action)
	assert.Equal(t, uint(103), decision.NextModuleID)
}

func TestNextStep_EnrolledLearnerCrossesPaidBoundary(t *testing.T) {
	svc := NewAdvancementService(
		&fakeProgressBuilder{complete: map[uint]bool{102: true}},
		&fakeEnrollments{enrolled: map[uint]bool{1: true}},
		&fakeCourseLoader{course: testCourse()},
	)

	decision, err := svc.NextStep(1, 102)
	require.NoError(t, err)
	assert.Equal(t, ActionNavigate, decision.Action)
	assert.Equal(t, uint(103), decision.NextModuleID)
}

// 课程评价提示只出现一次，之后重复查询退化为 stay
func TestNextStep_CourseReviewPromptedOnce(t *testing.T) {
	svc := NewAdvancementService(
		&fakeProgressBuilder{complete: map[uint]bool{103: true}},
		&fakeEnrollments{enrolled: map[uint]bool{1: true}},
		&fakeCourseLoader{course: testCourse()},
	)

	first, err := svc.NextStep(1, 103)
	require.NoError(t, err)
	assert.Equal(t, ActionCourseReview, first.Action)
	assert.True(t, first.ModuleComplete)

	second, err := svc.NextStep(1, 103)
	require.NoError(t, err)
	assert.Equal(t, ActionStay, second.Action)
	assert.True(t, second.ModuleComplete)

	// 防抖按 (用户, 课程) 隔离，别的学员照常收到提示
	other, err := svc.NextStep(2, 103)
	require.NoError(t, err)
	assert.Equal(t, ActionCourseReview, other.Action)
}

// 报名查询失败按未报名处理，落在付费边界上就提示升级
func TestNextStep_EnrollmentErrorDegradesToUpgrade(t *testing.T) {
	svc := NewAdvancementService(
		&fakeProgressBuilder{complete: map[uint]bool{102: true}},
		&fakeEnrollments{err: errors.New("db down")},
		&fakeCourseLoader{course: testCourse()},
	)

	decision, err := svc.NextStep(1, 102)
	require.NoError(t, err)
	assert.Equal(t, ActionUpgrade, decision.Action)
}

func TestNextStep_ProgressErrorPropagates(t *testing.T) {
	svc := NewAdvancementService(
		&fakeProgressBuilder{err: errors.New("boom")},
		&fakeEnrollments{enrolled: map[uint]bool{}},
		&fakeCourseLoader{course: testCourse()},
	)

	_, err := svc.NextStep(1, 100)
	assert.Error(t, err)
}
