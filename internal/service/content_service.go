package service

import (
	"lingopeer_backend/internal/model"
	"lingopeer_backend/internal/repository"
	"lingopeer_backend/internal/util"
)

// ContentService 课程目录读路径与模块评价
type ContentService struct {
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	RatingRepo     *repository.ModuleRatingRepository
}

func NewContentService(courseRepo *repository.CourseRepository, enrollmentRepo *repository.EnrollmentRepository, ratingRepo *repository.ModuleRatingRepository) *ContentService {
	return &ContentService{
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		RatingRepo:     ratingRepo,
	}
}

// CreateCourse 讲师录入新课程，默认未发布
func (s *ContentService) CreateCourse(course *model.Course) error {
	course.Published = false
	return s.CourseRepo.Create(course)
}

// PublishCourse 上架课程
func (s *ContentService) PublishCourse(courseID uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, err
	}
	course.Published = true
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *ContentService) ListCourses() ([]model.Course, error) {
	return s.CourseRepo.ListPublished()
}

func (s *ContentService) GetCourse(courseID uint) (*model.Course, error) {
	return s.CourseRepo.FindWithModules(courseID)
}

// GetModule 校验访问权限后返回模块与练习：已报名或处于免费体验范围
func (s *ContentService) GetModule(userID, moduleID uint) (*model.CourseModule, error) {
	mod, err := s.CourseRepo.FindModule(moduleID)
	if err != nil {
		return nil, err
	}

	course, err := s.CourseRepo.FindWithModules(mod.CourseID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range course.Modules {
		if course.Modules[i].ID == moduleID {
			idx = i
			break
		}
	}

	if idx >= 0 && idx < course.FreeModules {
		return mod, nil
	}

	enrolled, err := s.EnrollmentRepo.IsEnrolled(userID, mod.CourseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrModuleNotAccessible
	}
	return mod, nil
}

func (s *ContentService) Enroll(userID, courseID uint) error {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		return err
	}
	enrolled, err := s.EnrollmentRepo.IsEnrolled(userID, courseID)
	if err != nil {
		return err
	}
	if enrolled {
		return nil
	}
	return s.EnrollmentRepo.Create(&model.Enrollment{
		UserID:   userID,
		CourseID: courseID,
		Active:   true,
	})
}

// ListEnrollments 用户当前有效的报名记录
func (s *ContentService) ListEnrollments(userID uint) ([]model.Enrollment, error) {
	return s.EnrollmentRepo.ListByUser(userID)
}

func (s *ContentService) RateModule(userID, moduleID uint, value int) error {
	if value != 1 && value != -1 {
		return util.ErrInvalidRating
	}
	if _, err := s.CourseRepo.FindModule(moduleID); err != nil {
		return err
	}
	return s.RatingRepo.Upsert(&model.ModuleRating{
		UserID:   userID,
		ModuleID: moduleID,
		Value:    value,
	})
}

func (s *ContentService) ModuleRating(moduleID uint) (*model.ModuleRatingSummary, error) {
	return s.RatingRepo.Summary(moduleID)
}

func (s *ContentService) UserRating(moduleID, userID uint) (*model.ModuleRating, error) {
	return s.RatingRepo.FindByUser(moduleID, userID)
}
