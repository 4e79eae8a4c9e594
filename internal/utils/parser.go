package utils

import (
	"strings"

	"github.com/user/movielist/internal/model"
)

// ParseReport CSV 解析结果及统计
type ParseReport struct {
	Entries []model.MovieEntry
	Lines   int // 非空行数
	Dropped int // 被丢弃的格式错误行数
}

// ParseMovieCSV 解析片单 CSV 文本
// 每行格式: date,title,url[,...]，字段不足 3 个或标题为空的行直接丢弃
// 不支持引号转义，标题中的逗号会被当作分隔符
func ParseMovieCSV(text string) []model.MovieEntry {
	return ParseMovieCSVReport(text).Entries
}

// ParseMovieCSVReport 同 ParseMovieCSV，额外返回行数统计
func ParseMovieCSVReport(text string) ParseReport {
	report := ParseReport{Entries: []model.MovieEntry{}}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		report.Lines++

		fields := strings.Split(line, ",")
		if len(fields) < 3 {
			report.Dropped++
			continue
		}

		title := strings.TrimSpace(fields[1])
		if title == "" {
			report.Dropped++
			continue
		}

		report.Entries = append(report.Entries, model.MovieEntry{
			Title: title,
			URL:   strings.TrimSpace(fields[2]),
		})
	}

	return report
}
