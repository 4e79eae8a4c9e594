package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/user/movielist/internal/apperr"
	"github.com/user/movielist/internal/middleware"
	"github.com/user/movielist/internal/model"
	"github.com/user/movielist/internal/service"
	"github.com/user/movielist/internal/utils"
)

// maxCSVBytes 上传 CSV 的大小上限
const maxCSVBytes = 1 << 20

type nameRequest struct {
	Name string `json:"name" form:"name"`
}

type importRequest struct {
	Name string `json:"name" form:"name"`
	CSV  string `json:"csv" form:"csv"`
}

type titleRequest struct {
	Title string `json:"title" form:"title"`
}

type noteRequest struct {
	Title string `json:"title" form:"title" binding:"required"`
	Note  string `json:"note" form:"note"`
}

// sessionView 对外暴露的会话状态
type sessionView struct {
	View           service.View  `json:"view"`
	SelectedListID string        `json:"selected_list_id,omitempty"`
	OpenListID     string        `json:"open_list_id,omitempty"`
	Pick           *service.Pick `json:"pick,omitempty"`
	Message        string        `json:"message,omitempty"`
	Role           string        `json:"role,omitempty"`
}

func viewOf(sess *service.Session, role string) sessionView {
	v := sessionView{
		View:           sess.View,
		SelectedListID: sess.SelectedListID,
		OpenListID:     sess.OpenListID,
		Message:        sess.TakeMessage(),
		Role:           role,
	}
	if sess.HasPick() {
		pick := sess.Pick
		v.Pick = &pick
	}
	return v
}

// GetSession 当前导航状态，读取后清空消息槽
func (h *Handler) GetSession(c *gin.Context) {
	sess := h.session(c)
	err := h.Lists.Refresh(c.Request.Context(), sess)
	view := viewOf(sess, middleware.GetRole(c))
	h.respond(c, sess, view, err)
}

// ListLists 全部片单
func (h *Handler) ListLists(c *gin.Context) {
	sess := h.session(c)
	lists, err := h.Lists.Lists(c.Request.Context(), sess)
	h.respond(c, sess, lists, err)
}

// CreateList 创建空片单
func (h *Handler) CreateList(c *gin.Context) {
	sess := h.session(c)
	var req nameRequest
	if err := c.ShouldBind(&req); err != nil {
		h.respond(c, sess, nil, apperr.Validation("请求格式错误"))
		return
	}

	list, err := h.Lists.CreateList(c.Request.Context(), sess, req.Name)
	if err != nil {
		h.respond(c, sess, nil, err)
		return
	}
	h.saveSession(c, sess)
	utils.Created(c, list)
}

// ImportList 上传 CSV 创建片单，支持 multipart 文件或 JSON 文本
func (h *Handler) ImportList(c *gin.Context) {
	sess := h.session(c)

	var req importRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req.Name = c.PostForm("name")
		text, err := readUpload(c)
		if err != nil {
			h.respond(c, sess, nil, err)
			return
		}
		req.CSV = text
	} else if err := c.ShouldBind(&req); err != nil {
		h.respond(c, sess, nil, apperr.Validation("请求格式错误"))
		return
	}

	list, err := h.Lists.ImportCSV(c.Request.Context(), sess, req.Name, req.CSV)
	if err != nil {
		h.respond(c, sess, nil, err)
		return
	}
	h.saveSession(c, sess)
	utils.Created(c, list)
}

func readUpload(c *gin.Context) (string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", apperr.Validation("请选择要上传的 CSV 文件")
	}
	if fh.Size > maxCSVBytes {
		return "", apperr.Validation("CSV 文件不能超过 1MB")
	}
	f, err := fh.Open()
	if err != nil {
		return "", apperr.Validation("无法读取上传的文件")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxCSVBytes))
	if err != nil {
		return "", apperr.Validation("无法读取上传的文件")
	}
	return string(data), nil
}

// GetList 单个片单
func (h *Handler) GetList(c *gin.Context) {
	sess := h.session(c)
	list, err := h.Lists.Get(c.Request.Context(), sess, c.Param("id"))
	h.respond(c, sess, list, err)
}

// DeleteList 删除片单
func (h *Handler) DeleteList(c *gin.Context) {
	sess := h.session(c)
	err := h.Lists.DeleteList(c.Request.Context(), sess, c.Param("id"))
	h.respond(c, sess, viewOf(sess, ""), err)
}

// AddMovie 追加影片
func (h *Handler) AddMovie(c *gin.Context) {
	sess := h.session(c)
	var req titleRequest
	if err := c.ShouldBind(&req); err != nil {
		h.respond(c, sess, nil, apperr.Validation("请求格式错误"))
		return
	}
	list, err := h.Lists.AddMovie(c.Request.Context(), sess, c.Param("id"), req.Title)
	h.respond(c, sess, list, err)
}

// DeleteMovie 删除与请求体完全一致的条目
func (h *Handler) DeleteMovie(c *gin.Context) {
	sess := h.session(c)
	var entry model.MovieEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		h.respond(c, sess, nil, apperr.Validation("请求格式错误"))
		return
	}
	list, err := h.Lists.DeleteMovie(c.Request.Context(), sess, c.Param("id"), entry)
	h.respond(c, sess, list, err)
}

// EditNote 修改备注
func (h *Handler) EditNote(c *gin.Context) {
	sess := h.session(c)
	var req noteRequest
	if err := c.ShouldBind(&req); err != nil {
		h.respond(c, sess, nil, apperr.Validation("请指定影片标题"))
		return
	}
	list, err := h.Lists.EditNote(c.Request.Context(), sess, c.Param("id"), req.Title, req.Note)
	h.respond(c, sess, list, err)
}

// SelectList 选中片单
func (h *Handler) SelectList(c *gin.Context) {
	sess := h.session(c)
	err := h.Lists.Select(c.Request.Context(), sess, c.Param("id"))
	h.respond(c, sess, viewOf(sess, ""), err)
}

// OpenList 进入片单详情
func (h *Handler) OpenList(c *gin.Context) {
	sess := h.session(c)
	list, err := h.Lists.Open(c.Request.Context(), sess, c.Param("id"))
	h.respond(c, sess, list, err)
}

// Back 从详情返回
func (h *Handler) Back(c *gin.Context) {
	sess := h.session(c)
	err := h.Lists.Back(sess)
	h.respond(c, sess, viewOf(sess, ""), err)
}

// Pick 从选中的片单抽取今日影片
func (h *Handler) Pick(c *gin.Context) {
	sess := h.session(c)
	title, err := h.Lists.Generate(c.Request.Context(), sess)
	if err != nil {
		h.respond(c, sess, nil, err)
		return
	}
	h.respond(c, sess, gin.H{"title": title, "list_id": sess.Pick.ListID}, nil)
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "subscribers": h.Hub.Subscribers()})
}
