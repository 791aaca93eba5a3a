package controller

import (
	"lingopeer_backend/internal/service"
	"lingopeer_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	UserService *service.UserService
}

func NewUserController(userService *service.UserService) *UserController {
	return &UserController{UserService: userService}
}

func (ctrl *UserController) GetProfile(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}

	user, err := ctrl.UserService.GetByID(claims.UserID)
	if err != nil {
		util.NotFound(c)
		return
	}
	user.Password = ""
	util.Success(c, user)
}

func (ctrl *UserController) UpdateProfile(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}

	var input service.UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	user, err := ctrl.UserService.UpdateProfile(claims.UserID, input)
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	user.Password = ""
	util.Success(c, user)
}

// UploadAvatar 头像上传，限制 5MB
func (ctrl *UserController) UploadAvatar(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		util.BadRequest(c, "avatar file is required")
		return
	}
	if fileHeader.Size > 5<<20 {
		util.BadRequest(c, "avatar file too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	defer file.Close()

	url, err := ctrl.UserService.UploadAvatar(c.Request.Context(), claims.UserID,
		fileHeader.Filename, file, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		util.LogInternalError(c, err)
		return
	}

	util.Success(c, gin.H{"avatar": url})
}
