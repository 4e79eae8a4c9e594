package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/user/movielist/internal/apperr"
	"github.com/user/movielist/internal/model"
	"github.com/user/movielist/internal/realtime"
	"github.com/user/movielist/internal/repository"
	"github.com/user/movielist/internal/utils"
	"golang.org/x/sync/singleflight"
)

// ListStore 片单文档存储
type ListStore interface {
	Create(ctx context.Context, owner model.Owner, name string, movies []model.MovieEntry) (*model.MovieList, error)
	Get(ctx context.Context, owner model.Owner, id string) (*model.MovieList, error)
	ListByOwner(ctx context.Context, owner model.Owner) ([]model.MovieList, error)
	CountByOwner(ctx context.Context, owner model.Owner) (int64, error)
	ArrayUnion(ctx context.Context, owner model.Owner, id string, entries ...model.MovieEntry) (*model.MovieList, error)
	ArrayRemove(ctx context.Context, owner model.Owner, id string, entry model.MovieEntry) (*model.MovieList, int, error)
	Update(ctx context.Context, owner model.Owner, id string, fn func(list *model.MovieList) bool) (*model.MovieList, bool, error)
	Delete(ctx context.Context, owner model.Owner, id string) error
}

// ListManager 片单编排：解析结果入库、增删改、抽取，并维护会话中的选择状态
type ListManager struct {
	store     ListStore
	publisher realtime.Publisher
	snapshots *utils.LRUCache[*model.MovieList]
	group     singleflight.Group
	validate  *validator.Validate
	logger    *log.Logger
	intn      func(int) int
}

// ManagerOption 可选配置
type ManagerOption func(*ListManager)

// WithSnapshotCache 设置快照缓存容量与有效期
func WithSnapshotCache(size int, ttl time.Duration) ManagerOption {
	return func(m *ListManager) {
		m.snapshots = utils.NewLRUCache[*model.MovieList](size, ttl)
	}
}

// WithRandom 替换随机数来源
func WithRandom(intn func(int) int) ManagerOption {
	return func(m *ListManager) {
		m.intn = intn
	}
}

func NewListManager(store ListStore, publisher realtime.Publisher, logger *log.Logger, opts ...ManagerOption) *ListManager {
	m := &ListManager{
		store:     store,
		publisher: publisher,
		snapshots: utils.NewLRUCache[*model.MovieList](512, 5*time.Minute),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ResolveSession 身份解析完成后根据片单数量确定初始状态
func (m *ListManager) ResolveSession(ctx context.Context, sess *Session, owner model.Owner) error {
	count, err := m.store.CountByOwner(ctx, owner)
	if err != nil {
		return m.fail(sess, m.storeErr("ResolveSession", "", err))
	}
	return m.fail(sess, sess.Resolve(owner, count))
}

// Refresh 页面加载时校正会话状态，处理其他会话造成的片单增删
func (m *ListManager) Refresh(ctx context.Context, sess *Session) error {
	if err := sess.requireOwner(); err != nil {
		return err
	}
	owner := sess.Owner()
	count, err := m.store.CountByOwner(ctx, owner)
	if err != nil {
		return m.fail(sess, m.storeErr("Refresh", "", err))
	}

	if count == 0 {
		sess.SelectedListID = ""
		sess.OpenListID = ""
		sess.Pick = Pick{}
		sess.View = ViewNoLists
		return nil
	}
	if sess.View == ViewNoLists {
		sess.View = ViewHasLists
	}

	for _, id := range []string{sess.OpenListID, sess.SelectedListID} {
		if id == "" {
			continue
		}
		if _, err := m.store.Get(ctx, owner, id); errors.Is(err, repository.ErrListNotFound) {
			sess.ListRemoved(id, count)
		} else if err != nil {
			return m.fail(sess, m.storeErr("Refresh", id, err))
		}
	}
	return nil
}

// ImportCSV 解析 CSV 并创建新片单
func (m *ListManager) ImportCSV(ctx context.Context, sess *Session, listName, text string) (*model.MovieList, error) {
	report := utils.ParseMovieCSVReport(text)
	if report.Dropped > 0 {
		m.logger.Infof("[ListManager] 导入时丢弃 %d/%d 行格式错误的数据", report.Dropped, report.Lines)
	}
	return m.ImportAsNewList(ctx, sess, listName, report.Entries)
}

// ImportAsNewList 以给定名称和条目创建片单，并选中它
func (m *ListManager) ImportAsNewList(ctx context.Context, sess *Session, listName string, entries []model.MovieEntry) (*model.MovieList, error) {
	if err := sess.requireOwner(); err != nil {
		return nil, m.fail(sess, err)
	}
	if err := sess.canImport(); err != nil {
		return nil, m.fail(sess, err)
	}
	name := strings.TrimSpace(listName)
	if name == "" {
		return nil, m.fail(sess, apperr.Validation("片单名称不能为空"))
	}
	if len(entries) == 0 {
		return nil, m.fail(sess, apperr.EmptyImport())
	}
	for _, e := range entries {
		if err := m.validate.Struct(e); err != nil {
			return nil, m.fail(sess, apperr.Validation("影片标题不能为空"))
		}
	}
	return m.create(ctx, sess, name, entries)
}

// CreateList 创建空片单
func (m *ListManager) CreateList(ctx context.Context, sess *Session, listName string) (*model.MovieList, error) {
	if err := sess.requireOwner(); err != nil {
		return nil, m.fail(sess, err)
	}
	if err := sess.canImport(); err != nil {
		return nil, m.fail(sess, err)
	}
	name := strings.TrimSpace(listName)
	if name == "" {
		return nil, m.fail(sess, apperr.Validation("片单名称不能为空"))
	}
	return m.create(ctx, sess, name, nil)
}

func (m *ListManager) create(ctx context.Context, sess *Session, name string, entries []model.MovieEntry) (*model.MovieList, error) {
	list, err := m.store.Create(ctx, sess.Owner(), name, entries)
	if err != nil {
		return nil, m.fail(sess, m.storeErr("Create", "", err))
	}
	m.publish(ctx, list, false)
	if err := sess.Imported(list.ID); err != nil {
		return nil, m.fail(sess, err)
	}
	m.logger.Infof("[ListManager] 创建片单 %s (%d 部影片)", sess.Owner().Path(list.ID), len(list.Movies))
	return list, nil
}

// Lists 所有者名下全部片单
func (m *ListManager) Lists(ctx context.Context, sess *Session) ([]model.MovieList, error) {
	if err := sess.requireOwner(); err != nil {
		return nil, err
	}
	lists, err := m.store.ListByOwner(ctx, sess.Owner())
	if err != nil {
		return nil, m.fail(sess, m.storeErr("Lists", "", err))
	}
	return lists, nil
}

// Get 读取片单
func (m *ListManager) Get(ctx context.Context, sess *Session, listID string) (*model.MovieList, error) {
	if err := sess.requireOwner(); err != nil {
		return nil, err
	}
	list, err := m.store.Get(ctx, sess.Owner(), listID)
	if err != nil {
		return nil, m.fail(sess, m.storeErr("Get", listID, err))
	}
	return list, nil
}

// AddMovie 追加影片，并发追加互不覆盖
func (m *ListManager) AddMovie(ctx context.Context, sess *Session, listID, title string) (*model.MovieList, error) {
	if err := sess.requireOwner(); err != nil {
		return nil, m.fail(sess, err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, m.fail(sess, apperr.Validation("影片标题不能为空"))
	}

	list, err := m.store.ArrayUnion(ctx, sess.Owner(), listID, model.MovieEntry{Title: title})
	if err != nil {
		return nil, m.fail(sess, m.storeErr("AddMovie", listID, err))
	}
	m.publish(ctx, list, false)
	return list, nil
}

// DeleteMovie 删除与 entry 全字段相等的条目，没有匹配时不做任何修改
func (m *ListManager) DeleteMovie(ctx context.Context, sess *Session, listID string, entry model.MovieEntry) (*model.MovieList, error) {
	if err := sess.requireOwner(); err != nil {
		return nil, m.fail(sess, err)
	}

	list, removed, err := m.store.ArrayRemove(ctx, sess.Owner(), listID, entry)
	if err != nil {
		return nil, m.fail(sess, m.storeErr("DeleteMovie", listID, err))
	}
	if removed > 0 {
		sess.MovieRemoved(listID, entry.Title)
		m.publish(ctx, list, false)
	}
	return list, nil
}

// EditNote 修改所有同名条目的备注，整体替换条目序列，后写者生效
func (m *ListManager) EditNote(ctx context.Context, sess *Session, listID, title, note string) (*model.MovieList, error) {
	if err := sess.requireOwner(); err != nil {
		return nil, m.fail(sess, err)
	}

	list, changed, err := m.store.Update(ctx, sess.Owner(), listID, func(l *model.MovieList) bool {
		changed := false
		for i := range l.Movies {
			if l.Movies[i].Title == title && l.Movies[i].Note != note {
				l.Movies[i].Note = note
				changed = true
			}
		}
		return changed
	})
	if err != nil {
		return nil, m.fail(sess, m.storeErr("EditNote", listID, err))
	}
	if changed {
		m.publish(ctx, list, false)
	}
	return list, nil
}

// DeleteList 删除片单，清理会话中对它的引用
func (m *ListManager) DeleteList(ctx context.Context, sess *Session, listID string) error {
	if err := sess.requireOwner(); err != nil {
		return m.fail(sess, err)
	}
	owner := sess.Owner()

	if err := m.store.Delete(ctx, owner, listID); err != nil {
		return m.fail(sess, m.storeErr("DeleteList", listID, err))
	}
	m.publish(ctx, &model.MovieList{ID: listID, Namespace: owner.Namespace, OwnerID: owner.ID}, true)

	remaining, err := m.store.CountByOwner(ctx, owner)
	if err != nil {
		// 片单已删除，剩余数量未知时只清理引用
		sess.ListRemoved(listID, -1)
		return m.fail(sess, m.storeErr("DeleteList", listID, err))
	}
	sess.ListRemoved(listID, remaining)
	return nil
}

// Select 选中片单作为抽取来源
func (m *ListManager) Select(ctx context.Context, sess *Session, listID string) error {
	if _, err := m.Get(ctx, sess, listID); err != nil {
		return err
	}
	return m.fail(sess, sess.Select(listID))
}

// Open 进入片单详情，片单已不存在时回到列表
func (m *ListManager) Open(ctx context.Context, sess *Session, listID string) (*model.MovieList, error) {
	if err := sess.requireOwner(); err != nil {
		return nil, err
	}
	list, err := m.store.Get(ctx, sess.Owner(), listID)
	if errors.Is(err, repository.ErrListNotFound) {
		m.Vanished(ctx, sess, listID)
		return nil, m.fail(sess, apperr.NotFound(listID))
	}
	if err != nil {
		return nil, m.fail(sess, m.storeErr("Open", listID, err))
	}

	if sess.View == ViewListDetail {
		if sess.OpenListID == listID {
			return list, nil
		}
		_ = sess.Back()
	}
	if err := sess.Open(listID); err != nil {
		return nil, m.fail(sess, err)
	}
	return list, nil
}

// Back 从详情返回
func (m *ListManager) Back(sess *Session) error {
	return m.fail(sess, sess.Back())
}

// Vanished 订阅报告片单不存在时调用
func (m *ListManager) Vanished(ctx context.Context, sess *Session, listID string) {
	remaining, err := m.store.CountByOwner(ctx, sess.Owner())
	if err != nil {
		m.logger.Warnf("[ListManager] 统计片单数量失败: %v", err)
		remaining = -1
	}
	sess.ListRemoved(listID, remaining)
}

// Generate 从选中的片单抽取今日影片
func (m *ListManager) Generate(ctx context.Context, sess *Session) (string, error) {
	if err := sess.requireOwner(); err != nil {
		return "", m.fail(sess, err)
	}
	if sess.SelectedListID == "" {
		_, err := GenerateMovieOfTheDay(nil, m.intn)
		return "", m.fail(sess, err)
	}

	listID := sess.SelectedListID
	list, err := m.store.Get(ctx, sess.Owner(), listID)
	if errors.Is(err, repository.ErrListNotFound) {
		m.Vanished(ctx, sess, listID)
		return "", m.fail(sess, apperr.NotFound(listID))
	}
	if err != nil {
		return "", m.fail(sess, m.storeErr("Generate", listID, err))
	}

	title, err := GenerateMovieOfTheDay(list, m.intn)
	if err != nil {
		return "", m.fail(sess, err)
	}
	sess.SetPick(list.ID, title)
	return title, nil
}

// Snapshot 读取片单完整文档，供推送使用
// version 大于 0 时按版本缓存，同一时刻的并发读取合并为一次
func (m *ListManager) Snapshot(ctx context.Context, owner model.Owner, listID string, version int64) (*model.MovieList, error) {
	if version > 0 {
		if list, ok := m.snapshots.Get(snapshotKey(listID, version)); ok {
			return list, nil
		}
	}

	v, err, _ := m.group.Do("doc:"+owner.Path(listID), func() (any, error) {
		return m.store.Get(ctx, owner, listID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrListNotFound) {
			return nil, apperr.NotFound(listID)
		}
		return nil, m.storeErr("Snapshot", listID, err)
	}

	list := v.(*model.MovieList)
	if list.Version < version {
		// 合并到了变更提交前开始的读取，重新读一次
		list, err = m.store.Get(ctx, owner, listID)
		if errors.Is(err, repository.ErrListNotFound) {
			return nil, apperr.NotFound(listID)
		}
		if err != nil {
			return nil, m.storeErr("Snapshot", listID, err)
		}
	}
	m.snapshots.Set(snapshotKey(list.ID, list.Version), list)
	return list, nil
}

// CollectionSnapshot 读取所有者名下全部片单
func (m *ListManager) CollectionSnapshot(ctx context.Context, owner model.Owner) ([]model.MovieList, error) {
	v, err, _ := m.group.Do("coll:"+owner.Namespace+"/"+owner.ID, func() (any, error) {
		return m.store.ListByOwner(ctx, owner)
	})
	if err != nil {
		return nil, m.storeErr("CollectionSnapshot", "", err)
	}
	return v.([]model.MovieList), nil
}

func snapshotKey(listID string, version int64) string {
	return listID + "@" + strconv.FormatInt(version, 10)
}

func (m *ListManager) publish(ctx context.Context, list *model.MovieList, deleted bool) {
	if m.publisher == nil {
		return
	}
	change := realtime.Change{
		Namespace: list.Namespace,
		OwnerID:   list.OwnerID,
		ListID:    list.ID,
		Version:   list.Version,
		Deleted:   deleted,
	}
	if err := m.publisher.Publish(ctx, change); err != nil {
		m.logger.Warnf("[ListManager] 推送变更失败 %s: %v", list.ID, err)
	}
}

func (m *ListManager) storeErr(op, listID string, err error) error {
	switch {
	case errors.Is(err, repository.ErrListNotFound):
		return apperr.NotFound(listID)
	case errors.Is(err, repository.ErrEmptyTitle):
		return apperr.Validation("影片标题不能为空")
	}
	m.logger.Errorf("[ListManager] %s 失败: %v", op, err)
	return apperr.Store(op, err)
}

// fail 写入会话消息槽后原样返回错误
func (m *ListManager) fail(sess *Session, err error) error {
	if err != nil && sess != nil {
		sess.Fail(apperr.MessageOf(err))
	}
	return err
}
