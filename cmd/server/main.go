package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/joho/godotenv"
	"github.com/user/movielist/internal/config"
	"github.com/user/movielist/internal/handler"
	"github.com/user/movielist/internal/middleware"
	"github.com/user/movielist/internal/realtime"
	"github.com/user/movielist/internal/repository"
	"github.com/user/movielist/internal/router"
	"github.com/user/movielist/internal/service"
	"github.com/user/movielist/internal/utils"
)

func main() {
	logger := utils.NewLogger(os.Stderr, "info")

	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		logger.Info("未找到 .env 文件，使用系统环境变量")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("加载配置失败", "err", err)
	}
	logger = utils.NewLogger(os.Stderr, cfg.LogLevel)

	db, err := repository.InitDB(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", "err", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	repos := repository.NewRepositories(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 推送：memory 直接投递本地 Hub，postgres 经 NOTIFY 回流到每个实例的 Hub
	hub := realtime.NewHub()
	defer hub.Close()
	var publisher realtime.Publisher = hub
	if cfg.RealtimeDriver == "postgres" {
		listener, err := realtime.NewPGListener(cfg.DatabaseURL, cfg.RealtimeChannel, hub, logger)
		if err != nil {
			logger.Fatal("启动变更监听失败", "err", err)
		}
		go listener.Run(ctx)
		publisher = realtime.NewPGNotifier(db, cfg.RealtimeChannel)
	}

	lists := service.NewListManager(repos.MovieList, publisher, logger,
		service.WithSnapshotCache(cfg.SnapshotCacheSize, cfg.SnapshotCacheTTL))
	auth := service.NewAuthService(repos.User, cfg.Namespace, logger)
	authn := &middleware.Authenticator{
		Secret:  cfg.AppSecret,
		Expiry:  cfg.JWTExpiry,
		Auth:    auth,
		Limiter: middleware.NewAnonLimiter(cfg.AnonSignInPerMinute),
		Logger:  logger,
	}

	// 启动定时清理任务
	service.NewCleanupService(repos.User, cfg.AnonRetention, logger).Start(ctx)

	h := handler.NewHandler(cfg, lists, auth, authn, hub, logger)
	r := router.NewEngine(h, "./web/templates")

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// 推送流是长连接，不设置写超时
		WriteTimeout:   0,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Infof("服务器启动于 http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("服务器启动失败", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("正在关闭服务器...")

	// 先关闭 Hub 结束所有推送流，再等待其余请求完成
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器强制关闭", "err", err)
	}

	logger.Info("服务器已退出")
}
