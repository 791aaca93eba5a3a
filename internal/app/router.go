package app

import (
	"lingopeer_backend/internal/config"
	"lingopeer_backend/internal/middleware"
	"lingopeer_backend/internal/model"
	"lingopeer_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由（无需登录）
	public := router.Group("/api")
	{
		public.GET("/health", c.health.Health)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)

		// 课程目录允许游客浏览
		public.GET("/courses", middleware.TryAuthMiddleware(cfg), c.course.ListCourses)
		public.GET("/courses/:id", middleware.TryAuthMiddleware(cfg), c.course.GetCourse)
	}

	// 信令通道：AuthMiddleware 兼容 token 查询参数，WebSocket 握手走这里
	router.GET("/ws/signal", middleware.AuthMiddleware(cfg), c.signal.HandleWebSocket)

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/profile", c.auth.Me)
		authGroup.PUT("/user/profile", c.user.UpdateProfile)
		authGroup.POST("/user/avatar/upload", c.user.UploadAvatar)

		// 课程与模块
		authGroup.POST("/courses/:id/enroll", c.course.Enroll)
		authGroup.GET("/enrollments", c.course.ListEnrollments)
		authGroup.GET("/modules/:moduleId", c.course.GetModule)

		// 练习答题
		authGroup.GET("/exercise-answers/:moduleId/:exerciseIndex", c.exercise.GetAnswer)
		authGroup.GET("/modules/:moduleId/answers", c.exercise.ListModuleAnswers)
		authGroup.POST("/exercise-answers", c.exercise.SubmitAnswer)

		// 模块进度与去向决策
		authGroup.GET("/modules/:moduleId/progress", c.progress.GetModuleProgress)
		authGroup.POST("/progress/update", c.progress.UpdateProgress)
		authGroup.GET("/progress/history", c.progress.History)
		authGroup.GET("/modules/:moduleId/next-step", c.progress.NextStep)

		// 通话互评
		authGroup.POST("/peer-evaluations", c.evaluation.Submit)
		authGroup.GET("/modules/:moduleId/peer-feedback", c.evaluation.ListFeedback)

		// 模块评价（赞/踩）
		authGroup.GET("/modules/:moduleId/rating", c.rating.GetModuleRating)
		authGroup.GET("/modules/:moduleId/user-rating", c.rating.GetUserRating)
		authGroup.POST("/modules/:moduleId/rating", c.rating.RateModule)

		// 在线学员（REST 兜底，实时走 WebSocket）
		authGroup.GET("/signal/online-users", c.signal.OnlineUsers)

		// 讲师课程管理
		instructor := authGroup.Group("/instructor")
		instructor.Use(middleware.RoleMiddleware(model.Instructor))
		{
			instructor.POST("/courses", c.course.CreateCourse)
			instructor.POST("/courses/:id/publish", c.course.PublishCourse)
		}
	}
}
