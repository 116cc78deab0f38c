package app

import (
	"context"
	"course_connect_backend/internal/config"
	"course_connect_backend/internal/controller"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/service"
	"course_connect_backend/pkg/certrender"
	"course_connect_backend/pkg/configwatcher"
	"course_connect_backend/pkg/database"
	"course_connect_backend/pkg/logger"
	"course_connect_backend/pkg/monitoring"
	"course_connect_backend/pkg/security"
	"course_connect_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	scheduler       *cron.Cron
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
	origins         *security.OriginPolicy
}

type repositories struct {
	user        *repository.UserRepository
	course      *repository.CourseRepository
	module      *repository.ModuleRepository
	lesson      *repository.LessonRepository
	ordering    *repository.OrderingRepository
	enrollment  *repository.EnrollmentRepository
	progress    *repository.ProgressRepository
	quiz        *repository.QuizRepository
	payment     *repository.PaymentRepository
	certificate *repository.CertificateRepository
	dashboard   *repository.DashboardRepository
	tx          *repository.Transactor
}

type services struct {
	auth         *service.AuthService
	user         *service.UserService
	storage      *service.StorageService
	media        *service.MediaService
	guard        *service.CourseGuard
	ordering     *service.OrderingService
	course       *service.CourseService
	module       *service.ModuleService
	lesson       *service.LessonService
	enrollment   *service.EnrollmentService
	progress     *service.ProgressService
	quiz         *service.QuizService
	quizQuestion *service.QuizQuestionService
	payment      *service.PaymentService
	certificate  *service.CertificateService
	dashboard    *service.DashboardService
}

type controllers struct {
	auth        *controller.AuthController
	user        *controller.UserController
	dashboard   *controller.DashboardController
	course      *controller.CourseController
	module      *controller.ModuleController
	lesson      *controller.LessonController
	enrollment  *controller.EnrollmentController
	progress    *controller.ProgressController
	quiz        *controller.QuizController
	payment     *controller.PaymentController
	certificate *controller.CertificateController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, cfg *config.Config) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		course:      repository.NewCourseRepository(db),
		module:      repository.NewModuleRepository(db),
		lesson:      repository.NewLessonRepository(db),
		ordering:    repository.NewOrderingRepository(db),
		enrollment:  repository.NewEnrollmentRepository(db),
		progress:    repository.NewProgressRepository(db),
		quiz:        repository.NewQuizRepository(db),
		payment:     repository.NewPaymentRepository(db),
		certificate: repository.NewCertificateRepository(db),
		dashboard:   repository.NewDashboardRepository(db),
		tx:          repository.NewTransactor(db, cfg.Ordering),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.media = service.NewMediaService(s.storage, cfg.Storage.LocalPath)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user)
	s.guard = service.NewCourseGuard(repos.course, repos.module, repos.lesson)
	s.ordering = service.NewOrderingService(repos.ordering, repos.tx, cfg.Ordering)

	s.course = service.NewCourseService(repos.course, repos.enrollment, s.guard, s.media, repos.tx)
	s.module = service.NewModuleService(repos.module, repos.course, s.ordering, s.guard, s.storage)
	s.lesson = service.NewLessonService(repos.lesson, repos.module, s.ordering, s.guard, s.media)

	s.enrollment = service.NewEnrollmentService(repos.course, repos.enrollment, repos.payment, cfg)
	s.progress = service.NewProgressService(repos.lesson, repos.enrollment, repos.progress, repos.quiz, repos.tx, cfg)
	s.quiz = service.NewQuizService(repos.quiz, s.guard, repos.tx, cfg)
	s.quizQuestion = service.NewQuizQuestionService(repos.quiz, s.guard, repos.tx)

	s.payment = service.NewPaymentService(
		repos.payment,
		repos.course,
		repos.enrollment,
		s.enrollment,
		service.NewHTTPPaymentGateway(cfg.Payment),
		rdb,
		repos.tx,
		cfg,
	)
	s.certificate = service.NewCertificateService(
		repos.certificate,
		repos.enrollment,
		repos.course,
		repos.user,
		s.storage,
		certrender.New(),
		cfg,
	)
	s.dashboard = service.NewDashboardService(repos.course, repos.enrollment, repos.dashboard)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth),
		user:        controller.NewUserController(s.user),
		dashboard:   controller.NewDashboardController(s.dashboard),
		course:      controller.NewCourseController(s.course),
		module:      controller.NewModuleController(s.module),
		lesson:      controller.NewLessonController(s.lesson),
		enrollment:  controller.NewEnrollmentController(s.enrollment, s.progress),
		progress:    controller.NewProgressController(s.progress),
		quiz:        controller.NewQuizController(s.quiz, s.quizQuestion),
		payment:     controller.NewPaymentController(s.payment),
		certificate: controller.NewCertificateController(s.certificate),
		health:      controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	a.origins = security.NewOriginPolicy(cfg.CORS.AllowedOrigins)
	router.Use(security.CORS(a.origins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	if cfg.RateLimit.MaxRequests > 0 {
		router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window))
	}

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 定时对账长时间未完成的支付
func (a *App) startBackgroundTasks(s *services, cfg *config.Config) {
	if cfg.Payment.ReconcileCron == "" {
		return
	}

	a.scheduler = cron.New()
	_, err := a.scheduler.AddFunc(cfg.Payment.ReconcileCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		n, err := s.payment.ReconcilePending(ctx)
		if err != nil {
			logger.Log.Error("Payment reconcile failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Log.Info("Payment reconcile finished", zap.Int("updated", n))
		}
	})
	if err != nil {
		logger.Log.Error("Invalid reconcile cron expression", zap.String("cron", cfg.Payment.ReconcileCron), zap.Error(err))
		a.scheduler = nil
		return
	}
	a.scheduler.Start()
}

func (a *App) watchConfig(configDir string) {
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		logger.SetMode(newCfg.Server.Mode)
		if a.origins != nil {
			a.origins.SetOrigins(newCfg.CORS.AllowedOrigins)
		}
	})

	go configwatcher.WatchConfig(filepath.Join(configDir, "config.yaml"), func(newCfg *config.Config) {
		for _, cb := range a.configCallbacks {
			cb(newCfg)
		}
	})
}

func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode, cfg.ForceMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	// Redis 只用于支付回调去重，不可用时降级运行
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, webhook de-duplication disabled", zap.Error(err))
		rdb = nil
	}
	app.Redis = rdb

	repos := app.initRepositories(db, cfg)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("course-connect", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
		router.Static("/api/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services, cfg)
	app.watchConfig(configDir)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 等待正在执行的对账任务结束
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	log.Println("Server exiting")
}
