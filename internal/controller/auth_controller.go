package controller

import (
	"lingopeer_backend/internal/model"
	"lingopeer_backend/internal/service"
	"lingopeer_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

type registerRequest struct {
	Name           string `json:"name" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=6"`
	NativeLanguage string `json:"nativeLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

func (ctrl *AuthController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	user := &model.User{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		NativeLanguage: req.NativeLanguage,
		TargetLanguage: req.TargetLanguage,
		Role:           model.Student,
	}
	if err := ctrl.AuthService.Register(user); err != nil {
		if err == util.ErrEmailRegistered {
			util.Conflict(c, err.Error())
			return
		}
		util.LogInternalError(c, err)
		return
	}

	user.Password = ""
	util.Created(c, user)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (ctrl *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	token, err := ctrl.AuthService.Login(req.Email, req.Password)
	if err != nil {
		util.Error(c, http.StatusUnauthorized, "邮箱或密码错误")
		return
	}

	util.Success(c, gin.H{"token": token})
}

func (ctrl *AuthController) Me(c *gin.Context) {
	user := ctrl.AuthService.GetCurrentUser(c)
	if user == nil {
		util.Unauthorized(c)
		return
	}
	user.Password = ""
	util.Success(c, user)
}
