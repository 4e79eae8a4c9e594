package repository

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/user/movielist/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDB 连接 PostgreSQL 并完成表结构迁移
func InitDB(databaseURL string, logger *log.Logger) (*gorm.DB, error) {
	db, err := Open(postgres.Open(databaseURL), logger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取连接池失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return db, nil
}

// Open 使用任意方言打开数据库并迁移，测试中传入 sqlite
func Open(dialector gorm.Dialector, logger *log.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: NewGormLogger(logger)})
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}

	if err := db.AutoMigrate(&model.User{}, &model.MovieList{}); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return db, nil
}

// Repositories 仓库集合
type Repositories struct {
	DB        *gorm.DB
	User      *UserRepository
	MovieList *MovieListRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:        db,
		User:      NewUserRepository(db),
		MovieList: NewMovieListRepository(db),
	}
}
