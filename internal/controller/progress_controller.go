package controller

import (
	"lingopeer_backend/internal/service"
	"lingopeer_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ProgressController struct {
	ProgressionService *service.ProgressionService
	AdvancementService *service.AdvancementService
}

func NewProgressController(progressionService *service.ProgressionService, advancementService *service.AdvancementService) *ProgressController {
	return &ProgressController{
		ProgressionService: progressionService,
		AdvancementService: advancementService,
	}
}

// GetModuleProgress 派生当前模块进度，激活下标永远指向第一个未满足的练习
func (ctrl *ProgressController) GetModuleProgress(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}

	moduleID, err := strconv.ParseUint(c.Param("moduleId"), 10, 64)
	if err != nil {
		util.BadRequest(c, "invalid module id")
		return
	}

	state, err := ctrl.ProgressionService.BuildModuleProgress(claims.UserID, uint(moduleID))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			util.NotFound(c)
			return
		}
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, state)
}

type updateProgressRequest struct {
	ModuleID uint `json:"moduleId" binding:"required"`
}

// UpdateProgress 重新派生进度并落一条只写快照，响应返回最新状态
func (ctrl *ProgressController) UpdateProgress(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}

	var req updateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	state, err := ctrl.ProgressionService.BuildModuleProgress(claims.UserID, req.ModuleID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			util.NotFound(c)
			return
		}
		util.LogInternalError(c, err)
		return
	}
	if err := ctrl.ProgressionService.SaveSnapshot(claims.UserID, state); err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, state)
}

// History 学员近期的进度快照
func (ctrl *ProgressController) History(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	snapshots, err := ctrl.ProgressionService.ListSnapshots(claims.UserID, limit)
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, snapshots)
}

// NextStep 模块完成后的去向决策：stay、navigate、upgrade 或 course_review
func (ctrl *ProgressController) NextStep(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}

	moduleID, err := strconv.ParseUint(c.Param("moduleId"), 10, 64)
	if err != nil {
		util.BadRequest(c, "invalid module id")
		return
	}

	decision, err := ctrl.AdvancementService.NextStep(claims.UserID, uint(moduleID))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			util.NotFound(c)
			return
		}
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, decision)
}
