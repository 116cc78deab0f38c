package app

import (
	"course_connect_backend/internal/config"
	"course_connect_backend/internal/middleware"
	"course_connect_backend/internal/model"
	"course_connect_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		// 学员/通用 授权接口
		a.registerStudentRoutes(authGroup, c)

		// 讲师和管理员接口
		a.registerInstructorRoutes(authGroup, c)

		// 管理员接口
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)

		// 支付网关回调
		public.POST("/payments/webhook", c.payment.Webhook)

		public.GET("/certificates/verify/:code", c.certificate.Verify)
		public.GET("/courses/:id/modules", c.module.ListByCourse)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.Profile)
	rg.PUT("/profile", c.user.UpdateProfile)

	rg.GET("/dashboard", c.dashboard.GetDashboard)
	rg.GET("/dashboard/sidebar", c.dashboard.GetSidebar)

	// 课程
	rg.GET("/courses", c.course.ListCourses)
	rg.GET("/courses/:id", c.course.GetCourse)
	rg.GET("/modules/:id", c.module.GetModule)
	rg.GET("/modules/:id/lessons", c.lesson.ListByModule)
	rg.GET("/lessons/:id", c.lesson.GetLesson)

	// 报名
	enrollments := rg.Group("/enrollments")
	{
		enrollments.POST("", c.enrollment.Enroll)
		enrollments.GET("", c.enrollment.ListMine)
		enrollments.GET("/:courseId", c.enrollment.GetMine)
		enrollments.PUT("/:courseId/progress", c.enrollment.UpdateProgress)
	}

	// 学习进度
	rg.POST("/lessons/:id/complete", c.progress.CompleteLesson)
	rg.PUT("/lessons/:id/video-progress", c.progress.UpdateVideoProgress)
	rg.GET("/lessons/:id/progress", c.progress.GetLessonProgress)
	rg.GET("/lessons/:id/access", c.progress.CheckAccess)
	rg.POST("/courses/:id/progress/recompute", c.progress.Recompute)
	rg.GET("/courses/:id/lesson-progress", c.progress.CourseLessonProgress)

	// 测验
	rg.GET("/lessons/:id/quiz", c.quiz.GetLessonQuiz)
	quizzes := rg.Group("/quizzes")
	{
		quizzes.GET("/:id", c.quiz.GetQuiz)
		quizzes.GET("/:id/randomized", c.quiz.GetRandomized)
		quizzes.POST("/:id/submit", c.quiz.Submit)
		quizzes.GET("/:id/attempts", c.quiz.Attempts)
	}

	// 支付
	rg.POST("/payments/initiate/:courseId", c.payment.Initiate)
	rg.GET("/payments/verify/:transactionId", c.payment.Verify)

	// 证书
	certificates := rg.Group("/certificates")
	{
		certificates.GET("", c.certificate.ListMine)
		certificates.POST("/:courseId", c.certificate.Generate)
		certificates.GET("/:courseId", c.certificate.GetMine)
	}
}

func (a *App) registerInstructorRoutes(rg *gin.RouterGroup, c *controllers) {
	instructor := rg.Group("")
	instructor.Use(middleware.RoleMiddleware(model.Instructor))
	{
		instructor.POST("/courses", c.course.CreateCourse)
		instructor.PUT("/courses/:id", c.course.UpdateCourse)
		instructor.DELETE("/courses/:id", c.course.DeleteCourse)

		// 章节
		instructor.POST("/courses/:id/modules", c.module.CreateModule)
		instructor.GET("/courses/:id/modules/highest-order", c.module.HighestOrder)
		instructor.PUT("/courses/:id/modules/reorder", c.module.ReorderModules)
		instructor.PUT("/modules/:id", c.module.UpdateModule)
		instructor.DELETE("/modules/:id", c.module.DeleteModule)

		// 课时
		instructor.POST("/modules/:id/lessons", c.lesson.CreateLesson)
		instructor.GET("/modules/:id/lessons/highest-order", c.lesson.HighestOrder)
		instructor.PUT("/modules/:id/lessons/reorder", c.lesson.ReorderLessons)
		instructor.PUT("/lessons/:id", c.lesson.UpdateLesson)
		instructor.DELETE("/lessons/:id", c.lesson.DeleteLesson)

		// 测验和题目
		instructor.POST("/lessons/:id/quizzes", c.quiz.CreateQuiz)
		instructor.PUT("/quizzes/:id", c.quiz.UpdateQuiz)
		instructor.DELETE("/quizzes/:id", c.quiz.DeleteQuiz)
		instructor.POST("/quizzes/:id/questions", c.quiz.CreateQuestion)
		instructor.PUT("/questions/:id", c.quiz.UpdateQuestion)
		instructor.DELETE("/questions/:id", c.quiz.DeleteQuestion)

		instructor.GET("/enrollments/recent", c.enrollment.Recent)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/payments", c.payment.List)

		// 用户管理
		admin.GET("/admin/users", c.user.ListUsers)
		admin.GET("/admin/users/:id", c.user.GetUser)
		admin.PUT("/admin/users/:id", c.user.UpdateUser)
	}
}
