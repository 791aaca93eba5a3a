package controller

import (
	"lingopeer_backend/internal/service"
	"lingopeer_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ExerciseController struct {
	ProgressionService *service.ProgressionService
}

func NewExerciseController(progressionService *service.ProgressionService) *ExerciseController {
	return &ExerciseController{ProgressionService: progressionService}
}

// GetAnswer 读取单个答题槽位，未作答返回 404
func (ctrl *ExerciseController) GetAnswer(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}

	moduleID := util.MustParseUint(c.Param("moduleId"))
	if moduleID == 0 {
		util.BadRequest(c, "invalid module id")
		return
	}
	exerciseIndex := util.MustParseInt(c.Param("exerciseIndex"))
	if exerciseIndex < 0 {
		util.BadRequest(c, "invalid exercise index")
		return
	}

	answer, err := ctrl.ProgressionService.AnswerRepo.FindSlot(claims.UserID, moduleID, exerciseIndex)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			util.NotFound(c)
			return
		}
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, answer)
}

// ListModuleAnswers 模块内全部答题记录，前端恢复页面状态用
func (ctrl *ExerciseController) ListModuleAnswers(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}

	moduleID := util.MustParseUint(c.Param("moduleId"))
	if moduleID == 0 {
		util.BadRequest(c, "invalid module id")
		return
	}

	answers, err := ctrl.ProgressionService.ListModuleAnswers(claims.UserID, moduleID)
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, answers)
}

type submitAnswerRequest struct {
	ModuleID      uint     `json:"moduleId" binding:"required"`
	ExerciseIndex *int     `json:"exerciseIndex" binding:"required"`
	Answers       []string `json:"answers"`
	Submitted     bool     `json:"submitted"`
}

// SubmitAnswer 保存并判分一个槽位，同一槽位重复提交覆盖
func (ctrl *ExerciseController) SubmitAnswer(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}

	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	if *req.ExerciseIndex < 0 {
		util.BadRequest(c, "invalid exercise index")
		return
	}

	answer, err := ctrl.ProgressionService.SubmitAnswer(claims.UserID, req.ModuleID, *req.ExerciseIndex, req.Answers, req.Submitted)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			util.NotFound(c)
			return
		}
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, answer)
}
