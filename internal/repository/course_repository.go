package repository

import (
	"lingopeer_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) Update(course *model.Course) error {
	return r.DB.Save(course).Error
}

func (r *CourseRepository) ListPublished() ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.Where("published = ?", true).Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.First(&course, id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// FindWithModules 按模块顺序加载课程及其模块列表
func (r *CourseRepository) FindWithModules(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.
		Preload("Modules", func(db *gorm.DB) *gorm.DB {
			return db.Order("course_modules.order ASC")
		}).
		First(&course, id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// FindModule 按练习顺序加载模块及其练习列表
func (r *CourseRepository) FindModule(moduleID uint) (*model.CourseModule, error) {
	var mod model.CourseModule
	err := r.DB.
		Preload("Exercises", func(db *gorm.DB) *gorm.DB {
			return db.Order("exercises.index ASC")
		}).
		First(&mod, moduleID).Error
	if err != nil {
		return nil, err
	}
	return &mod, nil
}

func (r *CourseRepository) FindExercise(moduleID uint, index int) (*model.Exercise, error) {
	var ex model.Exercise
	err := r.DB.Where("module_id = ? AND `index` = ?", moduleID, index).First(&ex).Error
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

func (r *CourseRepository) FindExerciseByID(id uint) (*model.Exercise, error) {
	var ex model.Exercise
	err := r.DB.First(&ex, id).Error
	if err != nil {
		return nil, err
	}
	return &ex, nil
}
