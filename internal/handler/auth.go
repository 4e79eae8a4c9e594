package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/user/movielist/internal/apperr"
	"github.com/user/movielist/internal/middleware"
	"github.com/user/movielist/internal/model"
	"github.com/user/movielist/internal/service"
)

// Register 将当前匿名账户升级为正式账户
func (h *Handler) Register(c *gin.Context) {
	sess := h.session(c)
	var in service.RegisterInput
	if err := c.ShouldBind(&in); err != nil {
		h.respond(c, sess, nil, apperr.Validation("请求格式错误"))
		return
	}

	user, err := h.Auth.Register(c.Request.Context(), middleware.GetUID(c), in)
	if err != nil {
		sess.Fail(apperr.MessageOf(err))
		h.respond(c, sess, nil, err)
		return
	}
	h.switchAccount(c, sess, user)
}

// Login 登录其他账户，凭证变化后重新解析会话
func (h *Handler) Login(c *gin.Context) {
	sess := h.session(c)
	var in service.LoginInput
	if err := c.ShouldBind(&in); err != nil {
		h.respond(c, sess, nil, apperr.Validation("请求格式错误"))
		return
	}

	user, err := h.Auth.Login(c.Request.Context(), in)
	if err != nil {
		sess.Fail(apperr.MessageOf(err))
		h.respond(c, sess, nil, err)
		return
	}
	h.switchAccount(c, sess, user)
}

func (h *Handler) switchAccount(c *gin.Context, sess *service.Session, user *model.User) {
	if err := h.Authn.IssueToken(c, user); err != nil {
		h.Logger.Errorf("[Handler] 签发令牌失败: %v", err)
		h.respond(c, sess, nil, apperr.Store("IssueToken", err))
		return
	}

	sess.BeginAuth()
	err := h.Lists.ResolveSession(c.Request.Context(), sess, h.Auth.OwnerOf(user))
	h.respond(c, sess, gin.H{
		"username": user.Username,
		"role":     user.Role,
		"view":     sess.View,
	}, err)
}

// Logout 退出登录，下次请求会重新匿名登录
func (h *Handler) Logout(c *gin.Context) {
	sess := h.session(c)
	middleware.ClearToken(c)
	sess.SignOut()
	h.respond(c, sess, gin.H{"view": sess.View}, nil)
}
