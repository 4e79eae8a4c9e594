package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/user/movielist/internal/service"
	"github.com/user/movielist/internal/utils"
)

// Home 首页：没有片单时显示导入页，否则显示片单列表
func (h *Handler) Home(c *gin.Context) {
	ctx := c.Request.Context()
	sess := h.session(c)
	if err := h.Lists.Refresh(ctx, sess); err != nil {
		h.Logger.Warnf("[Handler] 刷新会话失败: %v", err)
	}
	if sess.View == service.ViewListDetail {
		_ = h.Lists.Back(sess)
	}

	if sess.View != service.ViewHasLists {
		data := h.RenderData(c, sess, gin.H{"Title": h.Config.SiteName + " - 导入片单"})
		h.saveSession(c, sess)
		c.HTML(http.StatusOK, "account.html", data)
		return
	}

	lists, err := h.Lists.Lists(ctx, sess)
	if err != nil {
		lists = nil
	}
	data := h.RenderData(c, sess, gin.H{
		"Title": h.Config.SiteName,
		"Lists": lists,
	})
	h.saveSession(c, sess)
	c.HTML(http.StatusOK, "main.html", data)
}

// ListPage 片单详情页，片单不存在时回到首页
func (h *Handler) ListPage(c *gin.Context) {
	sess := h.session(c)
	list, err := h.Lists.Open(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		h.saveSession(c, sess)
		c.Redirect(http.StatusFound, "/")
		return
	}

	data := h.RenderData(c, sess, gin.H{
		"Title": list.Name + " - " + h.Config.SiteName,
		"List":  list,
	})
	h.saveSession(c, sess)
	c.HTML(http.StatusOK, "list.html", data)
}

// NotFound 404：接口返回 JSON，其余返回页面
func (h *Handler) NotFound(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		utils.NotFound(c, "接口不存在")
		return
	}
	c.HTML(http.StatusNotFound, "404.html", h.RenderData(c, nil, gin.H{"Title": "页面不存在"}))
}
