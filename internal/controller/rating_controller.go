package controller

import (
	"lingopeer_backend/internal/service"
	"lingopeer_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type RatingController struct {
	ContentService *service.ContentService
}

func NewRatingController(contentService *service.ContentService) *RatingController {
	return &RatingController{ContentService: contentService}
}

// GetModuleRating 模块的赞/踩汇总
func (ctrl *RatingController) GetModuleRating(c *gin.Context) {
	moduleID, err := strconv.ParseUint(c.Param("moduleId"), 10, 64)
	if err != nil {
		util.BadRequest(c, "invalid module id")
		return
	}

	summary, err := ctrl.ContentService.ModuleRating(uint(moduleID))
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, summary)
}

// GetUserRating 当前用户对该模块的评价，未评价返回空值
func (ctrl *RatingController) GetUserRating(c *gin.Context) {
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

	rating, err := ctrl.ContentService.UserRating(uint(moduleID), claims.UserID)
	if err != nil {
		util.Success(c, gin.H{"value": 0})
		return
	}
	util.Success(c, gin.H{"value": rating.Value})
}

type rateModuleRequest struct {
	Value int `json:"value" binding:"required"`
}

// RateModule value 取 1（赞）或 -1（踩），重复提交覆盖旧值
func (ctrl *RatingController) RateModule(c *gin.Context) {
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

	var req rateModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	if err := ctrl.ContentService.RateModule(claims.UserID, uint(moduleID), req.Value); err != nil {
		if err == util.ErrInvalidRating {
			util.BadRequest(c, err.Error())
			return
		}
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, gin.H{"rated": true})
}
