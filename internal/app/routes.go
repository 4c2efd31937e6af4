package app

import (
	"time"

	"taskmate/internal/auth"
	"taskmate/internal/cache"
	"taskmate/internal/config"
	dom "taskmate/internal/domain"
	"taskmate/internal/handlers"
	"taskmate/internal/mail"
	"taskmate/internal/notify"
	"taskmate/internal/repo"
	"taskmate/internal/scheduler"
	"taskmate/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

// Setup registers all routes on the given engine and returns the scheduler so
// the app can start it.
func Setup(r *gin.Engine, cfg config.Config, db *pgxpool.Pool, rdb *redis.Client) *scheduler.Scheduler {
	r.GET("/", rootHandler(cfg))
	r.GET("/health", healthHandler(cfg))
	r.GET("/version", versionHandler(cfg))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(302, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))

	api := r.Group("/api/v1")

	// Repos.
	userRepo := repo.NewPGUserRepo(db)
	taskRepo := repo.NewPGTaskRepo(db)
	projectRepo := repo.NewPGProjectRepo(db)
	groupRepo := repo.NewPGGroupRepo(db)
	notifRepo := repo.NewPGNotificationRepo(db)
	activityRepo := repo.NewPGActivityRepo(db)
	commentRepo := repo.NewPGCommentRepo(db)
	entryRepo := repo.NewPGTimeEntryRepo(db)

	// Delivery pipeline: mail gateway -> notifier -> scheduler.
	mailer := mail.NewSMTPGateway(cfg.SMTP)
	notifier := notify.New(notifRepo, userRepo, mailer)
	sched := scheduler.New(taskRepo, projectRepo, notifier, cfg.Scheduler)

	sessionStore := auth.NewStore(rdb, 24*time.Hour)
	userSvc := service.NewUserService(userRepo)
	authHandler := handlers.NewAuthHandler(sessionStore, userSvc)
	registerAuthRoutes(api, authHandler)

	protected := api.Group("", auth.RequireSession(sessionStore))
	manage := protected.Group("", auth.RequireRole(dom.RoleAdmin, dom.RoleManager))
	admin := protected.Group("", auth.RequireRole(dom.RoleAdmin))

	boardCache := cache.NewBoardCache(rdb, cfg.Redis.DefaultTTL.Duration())
	taskSvc := service.NewTaskService(taskRepo, projectRepo, activityRepo, commentRepo, entryRepo, boardCache)
	taskHandler := handlers.NewTaskHandler(taskSvc)
	registerTaskRoutes(protected, taskHandler)

	projectSvc := service.NewProjectService(projectRepo, groupRepo, taskRepo)
	projectHandler := handlers.NewProjectHandler(projectSvc)
	registerProjectRoutes(protected, manage, projectHandler, taskHandler)

	groupSvc := service.NewGroupService(groupRepo)
	groupHandler := handlers.NewGroupHandler(groupSvc)
	registerGroupRoutes(protected, manage, groupHandler)

	userHandler := handlers.NewUserHandler(userSvc)
	protected.GET("/auth/me", authHandler.Me)
	manage.GET("/users", userHandler.List)
	admin.PATCH("/users/:id", userHandler.SetRoleStatus)

	notifSvc := service.NewNotificationService(notifRepo)
	notifHandler := handlers.NewNotificationHandler(notifSvc, sched)
	registerNotificationRoutes(protected, manage, notifHandler)

	dashboardHandler := handlers.NewDashboardHandler(projectSvc)
	manage.POST("/dashboard/projects/:id/recompute-health", dashboardHandler.RecomputeHealth)
	manage.GET("/dashboard/global", dashboardHandler.Global)

	return sched
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "Taskmate API",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"spec":    "/swagger-doc.json",
			"health":  "/health",
			"api":     "/api/v1",
		})
	}
}

func healthHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true, "env": cfg.App.Env})
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.Data(200, "application/json; charset=utf-8", []byte(doc))
	}
}

func registerAuthRoutes(api *gin.RouterGroup, h *handlers.AuthHandler) {
	api.POST("/auth/login", h.Login)
	api.POST("/auth/register", h.Register)
	api.POST("/auth/logout", h.Logout)
}

func registerTaskRoutes(api *gin.RouterGroup, h *handlers.TaskHandler) {
	api.POST("/tasks", h.Create)
	api.GET("/tasks/:id", h.GetByID)
	api.PATCH("/tasks/:id", h.Update)
	api.DELETE("/tasks/:id", h.Delete)
	api.POST("/tasks/:id/reorder", h.Reorder)
	api.POST("/tasks/:id/comments", h.AddComment)
	api.GET("/tasks/:id/comments", h.Comments)
	api.DELETE("/comments/:id", h.DeleteComment)
	api.POST("/tasks/:id/dependencies/:depId", h.AddDependency)
	api.DELETE("/tasks/:id/dependencies/:depId", h.RemoveDependency)
	api.POST("/tasks/:id/time", h.LogTime)
	api.GET("/tasks/:id/time", h.TimeEntries)
	api.DELETE("/time/:id", h.DeleteTimeEntry)
	api.GET("/tasks/:id/activity", h.Activity)
}

func registerProjectRoutes(api, manage *gin.RouterGroup, h *handlers.ProjectHandler, tasks *handlers.TaskHandler) {
	api.GET("/projects", h.List)
	api.GET("/projects/:id", h.GetByID)
	api.GET("/projects/:id/board", tasks.Board)
	api.GET("/projects/:id/tasks", tasks.List)
	api.GET("/projects/:id/summary", tasks.Summary)
	manage.POST("/projects", h.Create)
	manage.PUT("/projects/:id", h.Update)
	manage.DELETE("/projects/:id", h.Delete)
}

func registerGroupRoutes(api, manage *gin.RouterGroup, h *handlers.GroupHandler) {
	api.GET("/groups", h.List)
	api.GET("/groups/:id", h.GetByID)
	manage.POST("/groups", h.Create)
	manage.PUT("/groups/:id", h.Update)
	manage.DELETE("/groups/:id", h.Delete)
}

func registerNotificationRoutes(api, manage *gin.RouterGroup, h *handlers.NotificationHandler) {
	api.GET("/notifications", h.List)
	api.POST("/notifications/:id/read", h.MarkRead)
	manage.POST("/notifications/trigger-due", h.TriggerDue)
}
