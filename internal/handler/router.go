package handler

import (
	"context"
	"time"

	"vst-portal/config"
	"vst-portal/internal/model"
	"vst-portal/internal/repository"
	"vst-portal/internal/service"
	dbPkg "vst-portal/pkg/db"
	"vst-portal/pkg/jwt"
	"vst-portal/pkg/logger"
	"vst-portal/pkg/metrics"
	"vst-portal/pkg/ratelimit"
	"vst-portal/pkg/redis"
	"vst-portal/pkg/response"
	"vst-portal/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options 可选组件，零值表示不启用
type Options struct {
	Metrics *metrics.Metrics
	Hub     *websocket.Manager
}

// NewRouter 组装服务并注册全部路由
func NewRouter(cfg *config.Config, db *gorm.DB, opts Options) *gin.Engine {
	registerValidators()

	jwtSvc := jwt.NewJWTService(cfg.JWT)
	sessions := service.NewSessionService(db, jwtSvc, cfg.Auth.SessionCacheTTL)
	roles := repository.NewRoleRepository(db)

	// Hub 为 nil 时不推送刷新提示
	var notifier service.ChatNotifier
	if opts.Hub != nil {
		notifier = opts.Hub
	}

	authSvc := service.NewAuthService(db, sessions, opts.Metrics)
	accountSvc := service.NewAccountService(db, cfg.Upload)
	adminSvc := service.NewAdminService(db, sessions)
	supportSvc := service.NewSupportService(db, notifier, opts.Metrics)

	authHandler := NewAuthHandler(authSvc, cfg.Auth)
	accountHandler := NewAccountHandler(accountSvc)
	adminHandler := NewAdminHandler(authSvc, adminSvc)
	supportHandler := NewSupportHandler(supportSvc)

	router := gin.New()
	// 仅信任配置的代理，ClientIP 才能用于按IP限流
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Error("可信代理配置无效，忽略 X-Forwarded-For", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(logger.RequestIDMiddleware())
	router.Use(logger.RequestLogger())
	router.Use(logger.ErrorLoggerMiddleware())
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware())
		if cfg.Metrics.Enabled {
			router.GET(cfg.Metrics.Path, gin.WrapH(opts.Metrics.Handler()))
		}
	}
	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "endpoint not found")
	})

	setupBasicRoutes(router, db)

	authRequired := jwtSvc.AuthMiddleware(sessions, cfg.Auth.CookieName)
	adminRequired := jwt.RequireRole(roles, model.RoleAdmin)
	limiter := ratelimit.New(cfg.Auth.RateLimitMax, cfg.Auth.RateLimitWindow)

	router.GET("/uploads/avatars/:filename", accountHandler.ServeAvatar)

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", ratelimit.Middleware("register", limiter), authHandler.Register)
			auth.POST("/login", ratelimit.Middleware("login", limiter), authHandler.Login)
			auth.GET("/me", authRequired, authHandler.Me)
			auth.POST("/logout", authRequired, authHandler.Logout)
		}

		user := api.Group("/user", authRequired)
		{
			user.GET("/profile", accountHandler.GetProfile)
			user.PUT("/profile", accountHandler.UpdateProfile)
			user.POST("/avatar", accountHandler.UploadAvatar)
		}

		support := api.Group("/support", authRequired)
		{
			support.GET("/chats", supportHandler.ListChats)
			support.POST("/chats", supportHandler.CreateChat)
			support.GET("/chats/:id/messages", supportHandler.Messages)
			support.POST("/chats/:id/messages", supportHandler.PostMessage)
		}

		api.POST("/admin/login", ratelimit.Middleware("admin_login", limiter), authHandler.AdminLogin)

		admin := api.Group("/admin", authRequired, adminRequired)
		{
			admin.GET("/me", adminHandler.Me)
			admin.GET("/stats", adminHandler.Stats)

			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users", adminHandler.CreateUser)
			admin.GET("/users/export", adminHandler.ExportUsers)
			admin.PUT("/users/:id", adminHandler.UpdateUser)
			admin.PATCH("/users/:id/status", adminHandler.SetUserStatus)

			admin.GET("/support/chats", supportHandler.AdminListChats)
			admin.GET("/support/chats/:id/messages", supportHandler.AdminMessages)
			admin.POST("/support/chats/:id/messages", supportHandler.AdminReply)
			admin.PATCH("/support/chats/:id/status", supportHandler.UpdateStatus)
		}
	}

	if cfg.WebSocket.Enabled && opts.Hub != nil {
		wsHandler := websocket.NewHandler(opts.Hub, jwtSvc, sessions, roles, cfg.WebSocket, cfg.Auth.CookieName)
		router.GET("/ws", wsHandler.Serve)
	}

	return router
}

// setupBasicRoutes 服务信息与健康检查
func setupBasicRoutes(router *gin.Engine, db *gorm.DB) {
	router.GET("/", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "VST Backend API is running",
			"version": "1.0.0",
		})
	})

	router.GET("/api", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "VST API is running",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		database := "up"
		if err := dbPkg.Ping(ctx, db); err != nil {
			status, database = "degraded", "down"
		}
		cache := "disabled"
		if redis.Enabled() {
			cache = "up"
			if err := redis.HealthCheck(ctx); err != nil {
				status, cache = "degraded", "down"
			}
		}
		response.Success(c, gin.H{
			"status":   status,
			"database": database,
			"redis":    cache,
			"time":     time.Now().Format(time.RFC3339),
		})
	})
}
