package app

import (
	"context"
	"lingopeer_backend/internal/config"
	"lingopeer_backend/internal/controller"
	"lingopeer_backend/internal/repository"
	"lingopeer_backend/internal/service"
	"lingopeer_backend/pkg/database"
	"lingopeer_backend/pkg/logger"
	"lingopeer_backend/pkg/monitoring"
	"lingopeer_backend/pkg/security"
	"lingopeer_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
	stopCh   chan struct{}
}

type repositories struct {
	user           *repository.UserRepository
	course         *repository.CourseRepository
	enrollment     *repository.EnrollmentRepository
	exerciseAnswer *repository.ExerciseAnswerRepository
	peerEvaluation *repository.PeerEvaluationRepository
	moduleRating   *repository.ModuleRatingRepository
	progress       *repository.ProgressRepository
}

type services struct {
	auth        *service.AuthService
	storage     *service.StorageService
	user        *service.UserService
	content     *service.ContentService
	progression *service.ProgressionService
	advancement *service.AdvancementService
	evaluation  *service.EvaluationService
	signalHub   *service.SignalHub
	calls       *service.CallCoordinator
}

type controllers struct {
	auth       *controller.AuthController
	user       *controller.UserController
	course     *controller.CourseController
	exercise   *controller.ExerciseController
	progress   *controller.ProgressController
	evaluation *controller.EvaluationController
	rating     *controller.RatingController
	signal     *controller.SignalController
	health     *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:           repository.NewUserRepository(db),
		course:         repository.NewCourseRepository(db),
		enrollment:     repository.NewEnrollmentRepository(db),
		exerciseAnswer: repository.NewExerciseAnswerRepository(db),
		peerEvaluation: repository.NewPeerEvaluationRepository(db),
		moduleRating:   repository.NewModuleRatingRepository(db),
		progress:       repository.NewProgressRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user, s.storage)
	s.content = service.NewContentService(repos.course, repos.enrollment, repos.moduleRating)
	s.progression = service.NewProgressionService(repos.course, repos.exerciseAnswer, repos.progress)
	s.advancement = service.NewAdvancementService(s.progression, repos.enrollment, repos.course)
	s.evaluation = service.NewEvaluationService(repos.peerEvaluation, repos.exerciseAnswer)

	s.signalHub = service.NewSignalHub(rdb, service.NewPresenceRegistry(), &cfg.Signaling)
	s.calls = service.NewCallCoordinator(s.signalHub, repos.user, repos.course,
		nil, time.Duration(cfg.Signaling.CallRequestTTL)*time.Second)
	s.signalHub.SetCallHandler(s.calls)
	go s.signalHub.Run()

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		user:       controller.NewUserController(s.user),
		course:     controller.NewCourseController(s.content),
		exercise:   controller.NewExerciseController(s.progression),
		progress:   controller.NewProgressController(s.progression, s.advancement),
		evaluation: controller.NewEvaluationController(s.evaluation),
		rating:     controller.NewRatingController(s.content),
		signal:     controller.NewSignalController(s.signalHub, s.user),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 周期性清理超时未应答的呼叫请求
func (a *App) startBackgroundTasks(s *services, cfg *config.Config) {
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Signaling.SweepInterval) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.calls.ExpireStaleRequests()
			case <-a.stopCh:
				return
			}
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		stopCh: make(chan struct{}),
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("lingopeer-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services, cfg)

	return app
}

// ApplyConfig 应用热更新的配置项（仅限运行时可安全调整的部分）
func (a *App) ApplyConfig(cfg *config.Config) {
	if a.services != nil && a.services.calls != nil {
		a.services.calls.SetRequestTTL(time.Duration(cfg.Signaling.CallRequestTTL) * time.Second)
	}
	logger.Log.Info("Config reloaded", zap.Int("callRequestTTL", cfg.Signaling.CallRequestTTL))
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	close(a.stopCh)

	// 断开信令连接并清理 Redis 在线状态
	if a.services != nil && a.services.signalHub != nil {
		a.services.signalHub.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Log.Sync()
	log.Println("Server exiting")
}
