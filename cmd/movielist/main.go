package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"github.com/user/movielist/internal/config"
	"github.com/user/movielist/internal/repository"
	"github.com/user/movielist/internal/utils"
)

func main() {
	logger := utils.NewLogger(os.Stderr, "warn")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("加载配置失败", "err", err)
	}

	db, err := repository.InitDB(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", "err", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	runner := NewRunner(repository.NewRepositories(db), cfg.Namespace, os.Stdout, logger)

	app := &cli.Command{
		Name:     "movielist",
		Usage:    "片单管理命令行",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("执行失败: %v", err)
	}
}
