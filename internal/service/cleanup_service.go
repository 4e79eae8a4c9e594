package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/user/movielist/internal/repository"
)

// CleanupService 定时清理长期未活跃且没有片单的匿名账户
type CleanupService struct {
	users     *repository.UserRepository
	retention time.Duration
	interval  time.Duration
	logger    *log.Logger
}

// NewCleanupService 创建清理服务
func NewCleanupService(users *repository.UserRepository, retention time.Duration, logger *log.Logger) *CleanupService {
	return &CleanupService{
		users:     users,
		retention: retention,
		interval:  24 * time.Hour,
		logger:    logger,
	}
}

// Start 启动定时清理任务，ctx 结束后退出
func (s *CleanupService) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// 启动时先运行一次
		s.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce 执行一次清理，返回删除的账户数
func (s *CleanupService) RunOnce(ctx context.Context) int64 {
	s.logger.Info("[CleanupService] 开始清理过期匿名账户...")

	affected, err := s.users.DeleteStaleAnonymous(ctx, time.Now().Add(-s.retention))
	if err != nil {
		s.logger.Errorf("[CleanupService] 清理匿名账户失败: %v", err)
		return 0
	}
	if affected > 0 {
		s.logger.Infof("[CleanupService] 已清理 %d 个超过 %s 未活跃的匿名账户", affected, s.retention)
	}
	return affected
}
