package service

import (
	"github.com/user/movielist/internal/apperr"
	"github.com/user/movielist/internal/model"
)

// View 导航状态
type View string

const (
	ViewUnauthenticated View = "unauthenticated"
	ViewAuthenticating  View = "authenticating"
	ViewNoLists         View = "no_lists"
	ViewHasLists        View = "has_lists"
	ViewListDetail      View = "list_detail"
)

// Pick 当前抽中的影片，仅保存在会话中
type Pick struct {
	ListID string `json:"list_id"`
	Title  string `json:"title"`
}

// Session 单个浏览器会话的选择与导航状态，随 cookie 会话持久化，不写入片单存储
type Session struct {
	Namespace      string `json:"-"`
	OwnerID        string `json:"owner_id"`
	View           View   `json:"view"`
	SelectedListID string `json:"selected_list_id"`
	OpenListID     string `json:"open_list_id"`
	Pick           Pick   `json:"pick"`
	Message        string `json:"message"`
}

func NewSession() *Session {
	return &Session{View: ViewUnauthenticated}
}

// Owner 会话对应的片单所有者
func (s *Session) Owner() model.Owner {
	return model.Owner{Namespace: s.Namespace, ID: s.OwnerID}
}

// Authenticated 所有者是否已解析
func (s *Session) Authenticated() bool {
	switch s.View {
	case ViewNoLists, ViewHasLists, ViewListDetail:
		return s.Owner().Valid()
	}
	return false
}

// HasPick 是否存在抽取结果
func (s *Session) HasPick() bool {
	return s.Pick.Title != ""
}

func (s *Session) requireOwner() error {
	if !s.Authenticated() {
		return apperr.Unauthorized("")
	}
	return nil
}

func (s *Session) reset() {
	s.OwnerID = ""
	s.SelectedListID = ""
	s.OpenListID = ""
	s.Pick = Pick{}
}

// BeginAuth 开始解析身份，凭证变化时也会重新进入该状态
func (s *Session) BeginAuth() {
	s.reset()
	s.View = ViewAuthenticating
}

// Resolve 身份解析完成，按片单数量进入 NoLists 或 HasLists
func (s *Session) Resolve(owner model.Owner, listCount int64) error {
	if s.View != ViewAuthenticating {
		return apperr.InvalidState(string(s.View), "resolve")
	}
	if !owner.Valid() {
		return apperr.Unauthorized("")
	}
	s.Namespace = owner.Namespace
	s.OwnerID = owner.ID
	if listCount == 0 {
		s.View = ViewNoLists
	} else {
		s.View = ViewHasLists
	}
	return nil
}

// SignOut 退出登录
func (s *Session) SignOut() {
	s.reset()
	s.Message = ""
	s.View = ViewUnauthenticated
}

func (s *Session) canImport() error {
	switch s.View {
	case ViewNoLists, ViewHasLists, ViewListDetail:
		return nil
	}
	return apperr.InvalidState(string(s.View), "import")
}

// Imported 新片单创建完成，离开详情页，进入 HasLists 并选中它
func (s *Session) Imported(listID string) error {
	if err := s.canImport(); err != nil {
		return err
	}
	s.View = ViewHasLists
	s.OpenListID = ""
	s.selectList(listID)
	return nil
}

// Select 选中片单，切换到其他片单时清除抽取结果
func (s *Session) Select(listID string) error {
	if s.View != ViewHasLists && s.View != ViewListDetail {
		return apperr.InvalidState(string(s.View), "select")
	}
	s.selectList(listID)
	return nil
}

func (s *Session) selectList(listID string) {
	if s.SelectedListID != listID {
		s.Pick = Pick{}
	}
	s.SelectedListID = listID
}

// Open 进入片单详情
func (s *Session) Open(listID string) error {
	if s.View != ViewHasLists {
		return apperr.InvalidState(string(s.View), "open")
	}
	s.View = ViewListDetail
	s.OpenListID = listID
	return nil
}

// Back 从详情返回列表
func (s *Session) Back() error {
	if s.View != ViewListDetail {
		return apperr.InvalidState(string(s.View), "back")
	}
	s.View = ViewHasLists
	s.OpenListID = ""
	return nil
}

// ListRemoved 片单被删除或不再可见，remaining 为所有者剩余片单数
func (s *Session) ListRemoved(listID string, remaining int64) {
	if s.SelectedListID == listID {
		s.SelectedListID = ""
	}
	if s.Pick.ListID == listID {
		s.Pick = Pick{}
	}
	if s.View == ViewListDetail && s.OpenListID == listID {
		s.View = ViewHasLists
		s.OpenListID = ""
	}
	if remaining == 0 && (s.View == ViewHasLists || s.View == ViewListDetail) {
		s.View = ViewNoLists
		s.OpenListID = ""
	}
}

// MovieRemoved 抽中的影片被删除时清除抽取结果
func (s *Session) MovieRemoved(listID, title string) {
	if s.Pick.ListID == listID && s.Pick.Title == title {
		s.Pick = Pick{}
	}
}

// SetPick 记录抽取结果
func (s *Session) SetPick(listID, title string) {
	s.Pick = Pick{ListID: listID, Title: title}
}

// Fail 覆盖消息槽
func (s *Session) Fail(message string) {
	s.Message = message
}

// TakeMessage 读取并清空消息槽
func (s *Session) TakeMessage() string {
	msg := s.Message
	s.Message = ""
	return msg
}
