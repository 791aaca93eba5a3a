package controller

import (
	"lingopeer_backend/internal/model"
	"lingopeer_backend/internal/service"
	"lingopeer_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	ContentService *service.ContentService
}

func NewCourseController(contentService *service.ContentService) *CourseController {
	return &CourseController{ContentService: contentService}
}

type createCourseRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Language    string `json:"language" binding:"required"`
	Level       string `json:"level"`
	FreeModules int    `json:"freeModules"`
}

// CreateCourse 讲师创建课程，默认未发布
func (ctrl *CourseController) CreateCourse(c *gin.Context) {
	var req createCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	course := &model.Course{
		Title:       req.Title,
		Description: req.Description,
		Language:    req.Language,
		Level:       req.Level,
		FreeModules: req.FreeModules,
	}
	if err := ctrl.ContentService.CreateCourse(course); err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Created(c, course)
}

// PublishCourse 上架课程
func (ctrl *CourseController) PublishCourse(c *gin.Context) {
	courseID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(c, "invalid course id")
		return
	}

	course, err := ctrl.ContentService.PublishCourse(uint(courseID))
	if err != nil {
		util.NotFound(c)
		return
	}
	util.Success(c, course)
}

func (ctrl *CourseController) ListCourses(c *gin.Context) {
	courses, err := ctrl.ContentService.ListCourses()
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, courses)
}

func (ctrl *CourseController) GetCourse(c *gin.Context) {
	courseID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(c, "invalid course id")
		return
	}

	course, err := ctrl.ContentService.GetCourse(uint(courseID))
	if err != nil {
		util.NotFound(c)
		return
	}
	util.Success(c, course)
}

// GetModule 模块详情受免费额度和报名状态限制
func (ctrl *CourseController) GetModule(c *gin.Context) {
	moduleID, err := strconv.ParseUint(c.Param("moduleId"), 10, 64)
	if err != nil {
		util.BadRequest(c, "invalid module id")
		return
	}

	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}

	mod, err := ctrl.ContentService.GetModule(claims.UserID, uint(moduleID))
	if err != nil {
		if err == util.ErrModuleNotAccessible {
			util.Forbidden(c)
			return
		}
		util.NotFound(c)
		return
	}
	util.Success(c, mod)
}

// ListEnrollments 当前用户的有效报名
func (ctrl *CourseController) ListEnrollments(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}

	enrollments, err := ctrl.ContentService.ListEnrollments(claims.UserID)
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, enrollments)
}

func (ctrl *CourseController) Enroll(c *gin.Context) {
	courseID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(c, "invalid course id")
		return
	}

	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}

	if err := ctrl.ContentService.Enroll(claims.UserID, uint(courseID)); err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, gin.H{"enrolled": true})
}
