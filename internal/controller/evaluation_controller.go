package controller

import (
	"lingopeer_backend/internal/service"
	"lingopeer_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type EvaluationController struct {
	EvaluationService *service.EvaluationService
}

func NewEvaluationController(evaluationService *service.EvaluationService) *EvaluationController {
	return &EvaluationController{EvaluationService: evaluationService}
}

// Submit 通话结束后评价人提交互评，每个通话每人只能提交一次
func (ctrl *EvaluationController) Submit(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}

	var input service.SubmitEvaluationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	eval, err := ctrl.EvaluationService.Submit(claims.UserID, input)
	if err != nil {
		switch err {
		case util.ErrSelfEvaluation, util.ErrInvalidRating:
			util.BadRequest(c, err.Error())
		case util.ErrEvaluationExists:
			util.Conflict(c, err.Error())
		default:
			util.LogInternalError(c, err)
		}
		return
	}
	util.Created(c, eval)
}

// ListFeedback 当前用户在某模块收到的累积互评反馈
func (ctrl *EvaluationController) ListFeedback(c *gin.Context) {
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

	evals, err := ctrl.EvaluationService.ListForUser(claims.UserID, uint(moduleID))
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, evals)
}
