package utils

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// NewLogger 创建带时间戳的日志实例，w 为空时输出到 stderr
func NewLogger(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := log.NewWithOptions(w, log.Options{ReportTimestamp: true})
	if lvl, err := log.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	return l
}

// Discard 丢弃所有输出的日志实例，供测试与 CLI 静默模式使用
func Discard() *log.Logger {
	return log.New(io.Discard)
}
