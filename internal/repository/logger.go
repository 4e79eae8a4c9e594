package repository

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormLogger 将 GORM 日志转发到 charmbracelet/log
type GormLogger struct {
	logger        *log.Logger
	slowThreshold time.Duration
}

func NewGormLogger(l *log.Logger) *GormLogger {
	return &GormLogger{logger: l.WithPrefix("gorm"), slowThreshold: 200 * time.Millisecond}
}

func (l *GormLogger) LogMode(logger.LogLevel) logger.Interface {
	return l
}

func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	l.logger.Info(msg, "data", data)
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	l.logger.Warn(msg, "data", data)
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	l.logger.Error(msg, "data", data)
}

func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.logger.Error("SQL 执行失败", "err", err, "sql", sql, "rows", rows, "elapsed", elapsed)
	case elapsed > l.slowThreshold:
		l.logger.Warn("慢查询", "sql", sql, "rows", rows, "elapsed", elapsed)
	default:
		l.logger.Debug("SQL", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
