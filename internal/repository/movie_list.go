package repository

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/user/movielist/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrListNotFound 片单不存在或不属于该所有者
	ErrListNotFound = errors.New("movie list not found")
	// ErrEmptyTitle 片单中不允许出现空标题
	ErrEmptyTitle = errors.New("movie entry title is empty")
)

// MovieListRepository 片单文档存储
// 所有写操作都在单个事务内锁定目标行后基于当前持久化值执行
type MovieListRepository struct {
	db *gorm.DB
}

func NewMovieListRepository(db *gorm.DB) *MovieListRepository {
	return &MovieListRepository{db: db}
}

func newListID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0)).String()
}

func checkEntries(entries []model.MovieEntry) error {
	for i, e := range entries {
		if e.Title == "" {
			return fmt.Errorf("entry %d: %w", i, ErrEmptyTitle)
		}
	}
	return nil
}

func (r *MovieListRepository) scoped(ctx context.Context, owner model.Owner) *gorm.DB {
	return r.db.WithContext(ctx).Where("namespace = ? AND owner_id = ?", owner.Namespace, owner.ID)
}

// Create 创建片单，返回带存储分配 ID 的文档
func (r *MovieListRepository) Create(ctx context.Context, owner model.Owner, name string, movies []model.MovieEntry) (*model.MovieList, error) {
	if err := checkEntries(movies); err != nil {
		return nil, err
	}
	if movies == nil {
		movies = []model.MovieEntry{}
	}

	now := time.Now()
	list := &model.MovieList{
		ID:        newListID(),
		Namespace: owner.Namespace,
		OwnerID:   owner.ID,
		Name:      name,
		Movies:    movies,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Get 读取单个片单
func (r *MovieListRepository) Get(ctx context.Context, owner model.Owner, id string) (*model.MovieList, error) {
	var list model.MovieList
	err := r.scoped(ctx, owner).Where("id = ?", id).First(&list).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrListNotFound
	}
	if err != nil {
		return nil, err
	}
	normalize(&list)
	return &list, nil
}

// ListByOwner 所有者名下全部片单，按创建时间升序
func (r *MovieListRepository) ListByOwner(ctx context.Context, owner model.Owner) ([]model.MovieList, error) {
	var lists []model.MovieList
	err := r.scoped(ctx, owner).Order("created_at ASC, id ASC").Find(&lists).Error
	if err != nil {
		return nil, err
	}
	for i := range lists {
		normalize(&lists[i])
	}
	return lists, nil
}

// CountByOwner 所有者名下片单数量
func (r *MovieListRepository) CountByOwner(ctx context.Context, owner model.Owner) (int64, error) {
	var count int64
	err := r.scoped(ctx, owner).Model(&model.MovieList{}).Count(&count).Error
	return count, err
}

// ArrayUnion 追加条目，不去重，保持顺序
func (r *MovieListRepository) ArrayUnion(ctx context.Context, owner model.Owner, id string, entries ...model.MovieEntry) (*model.MovieList, error) {
	if err := checkEntries(entries); err != nil {
		return nil, err
	}
	list, _, err := r.mutate(ctx, owner, id, func(l *model.MovieList) (bool, error) {
		if len(entries) == 0 {
			return false, nil
		}
		l.Movies = append(l.Movies, entries...)
		return true, nil
	})
	return list, err
}

// ArrayRemove 移除所有与 entry 全字段相等的条目，返回移除数量
// 没有匹配时片单保持不变，也不会递增版本
func (r *MovieListRepository) ArrayRemove(ctx context.Context, owner model.Owner, id string, entry model.MovieEntry) (*model.MovieList, int, error) {
	removed := 0
	list, _, err := r.mutate(ctx, owner, id, func(l *model.MovieList) (bool, error) {
		kept := make([]model.MovieEntry, 0, len(l.Movies))
		for _, m := range l.Movies {
			if m.Equal(entry) {
				removed++
				continue
			}
			kept = append(kept, m)
		}
		l.Movies = kept
		return removed > 0, nil
	})
	return list, removed, err
}

// Update 在行锁内对片单执行读改写，fn 返回 false 表示无变化
func (r *MovieListRepository) Update(ctx context.Context, owner model.Owner, id string, fn func(list *model.MovieList) bool) (*model.MovieList, bool, error) {
	return r.mutate(ctx, owner, id, func(l *model.MovieList) (bool, error) {
		if !fn(l) {
			return false, nil
		}
		return true, checkEntries(l.Movies)
	})
}

// Delete 删除片单
func (r *MovieListRepository) Delete(ctx context.Context, owner model.Owner, id string) error {
	res := r.scoped(ctx, owner).Where("id = ?", id).Delete(&model.MovieList{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrListNotFound
	}
	return nil
}

func (r *MovieListRepository) mutate(ctx context.Context, owner model.Owner, id string, fn func(list *model.MovieList) (bool, error)) (*model.MovieList, bool, error) {
	var list model.MovieList
	changed := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND namespace = ? AND owner_id = ?", id, owner.Namespace, owner.ID).
			First(&list).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrListNotFound
		}
		if err != nil {
			return err
		}
		normalize(&list)

		ok, err := fn(&list)
		if err != nil || !ok {
			return err
		}
		changed = true
		list.Version++
		list.UpdatedAt = time.Now()
		return tx.Model(&list).Select("movies", "version", "updated_at").Updates(&list).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &list, changed, nil
}

func normalize(list *model.MovieList) {
	if list.Movies == nil {
		list.Movies = []model.MovieEntry{}
	}
}
