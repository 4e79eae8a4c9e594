// Package testutil 测试共用的数据库与数据构造工具
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/user/movielist/internal/model"
	"github.com/user/movielist/internal/repository"
	"github.com/user/movielist/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewTestDB 在临时目录中创建已迁移的 sqlite 数据库
// 单连接保证写事务串行，与 PostgreSQL 行锁下的可见行为一致
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "movielist.db")
	db, err := repository.Open(sqlite.Open(path+"?_busy_timeout=5000"), utils.Discard())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// NewRepos 基于临时数据库的仓库集合
func NewRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	return repository.NewRepositories(NewTestDB(t))
}

// NewOwner 随机所有者
func NewOwner() model.Owner {
	return model.Owner{Namespace: "test", ID: uuid.NewString()}
}

// SeedList 直接通过仓库创建片单
func SeedList(t *testing.T, repos *repository.Repositories, owner model.Owner, name string, titles ...string) *model.MovieList {
	t.Helper()

	entries := make([]model.MovieEntry, 0, len(titles))
	for _, title := range titles {
		entries = append(entries, model.MovieEntry{Title: title})
	}
	list, err := repos.MovieList.Create(context.Background(), owner, name, entries)
	require.NoError(t, err)
	return list
}

// Titles 提取条目标题，便于断言顺序
func Titles(list *model.MovieList) []string {
	titles := make([]string, 0, len(list.Movies))
	for _, m := range list.Movies {
		titles = append(titles, m.Title)
	}
	return titles
}
