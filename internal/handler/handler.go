package handler

import (
	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/user/movielist/internal/config"
	"github.com/user/movielist/internal/middleware"
	"github.com/user/movielist/internal/model"
	"github.com/user/movielist/internal/realtime"
	"github.com/user/movielist/internal/service"
	"github.com/user/movielist/internal/utils"
)

// sessionKey cookie 会话中保存导航状态的键
const sessionKey = "state"

// Handler HTTP 处理器
type Handler struct {
	Config *config.Config
	Lists  *service.ListManager
	Auth   *service.AuthService
	Authn  *middleware.Authenticator
	Hub    *realtime.Hub
	Logger *log.Logger
}

// NewHandler 创建处理器
func NewHandler(cfg *config.Config, lists *service.ListManager, auth *service.AuthService, authn *middleware.Authenticator, hub *realtime.Hub, logger *log.Logger) *Handler {
	return &Handler{
		Config: cfg,
		Lists:  lists,
		Auth:   auth,
		Authn:  authn,
		Hub:    hub,
		Logger: logger,
	}
}

// session 读取当前会话；身份与会话不一致（新匿名登录、切换账户）时重新解析
func (h *Handler) session(c *gin.Context) *service.Session {
	sess := service.NewSession()
	if v, ok := sessions.Default(c).Get(sessionKey).(service.Session); ok {
		*sess = v
	}
	sess.Namespace = h.Config.Namespace

	uid := middleware.GetUID(c)
	if uid == "" {
		return sess
	}
	if !sess.Authenticated() || sess.OwnerID != uid || middleware.SignedInAnonymously(c) {
		sess.BeginAuth()
		owner := model.Owner{Namespace: h.Config.Namespace, ID: uid}
		if err := h.Lists.ResolveSession(c.Request.Context(), sess, owner); err != nil {
			h.Logger.Errorf("[Handler] 解析会话失败: %v", err)
		}
	}
	return sess
}

// saveSession 写回 cookie 会话，必须在写响应体之前调用
func (h *Handler) saveSession(c *gin.Context, sess *service.Session) {
	store := sessions.Default(c)
	store.Set(sessionKey, *sess)
	if err := store.Save(); err != nil {
		h.Logger.Errorf("[Handler] 保存会话失败: %v", err)
	}
}

// respond 保存会话后输出统一响应
func (h *Handler) respond(c *gin.Context, sess *service.Session, data any, err error) {
	h.saveSession(c, sess)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, data)
}

// RenderData 统一封装公共渲染数据
func (h *Handler) RenderData(c *gin.Context, sess *service.Session, data gin.H) gin.H {
	res := gin.H{
		"SiteName": h.Config.SiteName,
		"SiteUrl":  h.Config.SiteUrl,
		"Path":     c.Request.URL.Path,
		"Role":     middleware.GetRole(c),
	}
	if sess != nil {
		res["Session"] = sess
		res["Message"] = sess.TakeMessage()
	}
	for k, v := range data {
		res[k] = v
	}
	return res
}
