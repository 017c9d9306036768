package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vst-portal/config"
	"vst-portal/internal/handler"
	"vst-portal/internal/model"
	"vst-portal/internal/repository"
	"vst-portal/internal/service"
	dbPkg "vst-portal/pkg/db"
	"vst-portal/pkg/jwt"
	"vst-portal/pkg/logger"
	"vst-portal/pkg/metrics"
	"vst-portal/pkg/redis"
	"vst-portal/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg := config.LoadConfig()

	// 2. 初始化日志系统
	log := logger.InitLogger(cfg.Log)
	defer func() { _ = log.Sync() }()

	log.Info("=== VST Portal 启动 ===")
	log.Info("服务器配置信息",
		zap.String("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("database_host", cfg.Database.Host),
		zap.String("database_name", cfg.Database.Database),
		zap.Duration("jwt_expire_time", cfg.JWT.ExpireTime),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("websocket_enabled", cfg.WebSocket.Enabled),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 初始化数据库连接
	db, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		log.Fatal("数据库连接失败", zap.Error(err))
	}
	log.Info("数据库连接成功")

	ctx := context.Background()

	// 3.1 自动迁移表结构（生产环境可关闭，改用 cmd/migrate）
	if cfg.Database.AutoMigrate {
		if err := dbPkg.AutoMigrate(model.AllModels()...); err != nil {
			log.Fatal("自动迁移失败", zap.Error(err))
		}
		log.Info("自动迁移完成")
	}
	if err := repository.NewRoleRepository(db).EnsureRoles(ctx); err != nil {
		log.Fatal("初始化角色失败", zap.Error(err))
	}

	// 4. Redis（可选）：会话缓存与登录限流
	if cfg.Redis.Enabled {
		if err := redis.InitRedis(ctx, cfg.Redis); err != nil {
			log.Warn("Redis不可用，会话校验与限流降级到本地", zap.Error(err))
		} else {
			log.Info("Redis连接成功")
		}
	}

	// 5. 设置Gin模式
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	opts := handler.Options{}
	if cfg.Metrics.Enabled {
		opts.Metrics = metrics.New()
	}
	if cfg.WebSocket.Enabled {
		opts.Hub = websocket.NewManager()
	}
	router := handler.NewRouter(cfg, db, opts)

	// 定期清理过期会话
	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	go purgeExpiredSessions(purgeCtx, service.NewSessionService(db, jwt.NewJWTService(cfg.JWT), 0), time.Hour)

	// 6. 创建HTTP服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 7. 启动HTTP服务器
	go func() {
		log.Info("HTTP服务器启动", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP服务器启动失败", zap.Error(err))
		}
	}()

	// 8. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	err = multierr.Append(err, redis.Close())
	err = multierr.Append(err, dbPkg.CloseDB())
	if err != nil {
		log.Error("关闭资源失败", zap.Errors("errors", multierr.Errors(err)))
	}

	log.Info("服务器已安全关闭")
}

func purgeExpiredSessions(ctx context.Context, sessions *service.SessionService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("清理过期会话失败", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("已清理过期会话", zap.Int64("count", n))
			}
		}
	}
}
