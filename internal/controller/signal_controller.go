package controller

import (
	"lingopeer_backend/internal/service"
	"lingopeer_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SignalController struct {
	Hub         *service.SignalHub
	UserService *service.UserService
}

func NewSignalController(hub *service.SignalHub, userService *service.UserService) *SignalController {
	return &SignalController{Hub: hub, UserService: userService}
}

// HandleWebSocket 升级信令连接。身份在握手后还需通过 authenticate 消息绑定。
func (ctrl *SignalController) HandleWebSocket(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}

	name := ""
	if user, err := ctrl.UserService.GetByID(claims.UserID); err == nil {
		name = user.Name
	}

	service.ServeWs(ctrl.Hub, c.Writer, c.Request, claims.UserID, name)
}

// OnlineUsers 返回当前在线学员 ID，供练习页轮询兜底
func (ctrl *SignalController) OnlineUsers(c *gin.Context) {
	ids := ctrl.Hub.OnlineUserIDs()
	util.Success(c, gin.H{
		"count": len(ids),
		"users": ids,
	})
}
