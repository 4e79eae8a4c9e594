package handler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/user/movielist/internal/apperr"
	"github.com/user/movielist/internal/model"
	"github.com/user/movielist/internal/utils"
)

const (
	pingInterval = 25 * time.Second
	writeWait    = 10 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin 只接受与当前 Host 完全一致的 Origin，没有 Origin 的非浏览器客户端放行
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

func sseHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// ListEvents SSE 订阅单个片单：先推送当前文档，之后每次变更推送完整文档
// 片单不存在或被删除时推送 not_found 并结束
func (h *Handler) ListEvents(c *gin.Context) {
	sess := h.session(c)
	h.saveSession(c, sess)
	if !sess.Authenticated() {
		utils.Fail(c, apperr.Unauthorized(""))
		return
	}

	owner := sess.Owner()
	listID := c.Param("id")
	ctx := c.Request.Context()

	// 先订阅再读取，避免错过两者之间的变更
	sub, err := h.Hub.SubscribeDocument(owner, listID)
	if err != nil {
		utils.Fail(c, apperr.Store("SubscribeDocument", err))
		return
	}
	defer sub.Unsubscribe()

	sseHeaders(c)
	sent, ok := h.sendList(ctx, c, owner, listID, 0, 0)
	c.Writer.Flush()
	if !ok {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case change, ok := <-sub.C:
			if !ok {
				return false
			}
			if change.Deleted {
				c.SSEvent("not_found", gin.H{"id": listID})
				return false
			}
			// 乱序到达的旧版本不再推送
			if change.Version <= sent {
				return true
			}
			sent, ok = h.sendList(ctx, c, owner, listID, change.Version, sent)
			return ok
		case <-ping.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}

// sendList 推送版本不低于 version 的文档，返回已推送的最新版本；false 表示流应结束
func (h *Handler) sendList(ctx context.Context, c *gin.Context, owner model.Owner, listID string, version, sent int64) (int64, bool) {
	list, err := h.Lists.Snapshot(ctx, owner, listID, version)
	if apperr.Is(err, apperr.CodeNotFound) {
		c.SSEvent("not_found", gin.H{"id": listID})
		return sent, false
	}
	if err != nil {
		c.SSEvent("error", gin.H{"message": apperr.MessageOf(err)})
		return sent, true
	}
	if list.Version <= sent {
		return sent, true
	}
	c.SSEvent("list", list)
	return list.Version, true
}

// CollectionEvents SSE 订阅所有者名下全部片单，每次变更推送完整快照
func (h *Handler) CollectionEvents(c *gin.Context) {
	sess := h.session(c)
	h.saveSession(c, sess)
	if !sess.Authenticated() {
		utils.Fail(c, apperr.Unauthorized(""))
		return
	}

	owner := sess.Owner()
	ctx := c.Request.Context()

	sub, err := h.Hub.SubscribeCollection(owner)
	if err != nil {
		utils.Fail(c, apperr.Store("SubscribeCollection", err))
		return
	}
	defer sub.Unsubscribe()

	sseHeaders(c)
	h.sendCollection(ctx, c, owner)
	c.Writer.Flush()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-sub.C:
			if !ok {
				return false
			}
			h.sendCollection(ctx, c, owner)
			return true
		case <-ping.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}

func (h *Handler) sendCollection(ctx context.Context, c *gin.Context, owner model.Owner) {
	lists, err := h.Lists.CollectionSnapshot(ctx, owner)
	if err != nil {
		c.SSEvent("error", gin.H{"message": apperr.MessageOf(err)})
		return
	}
	c.SSEvent("lists", lists)
}

type wsMessage struct {
	Type    string            `json:"type"`
	Lists   []model.MovieList `json:"lists,omitempty"`
	Message string            `json:"message,omitempty"`
}

// CollectionSocket websocket 版本的全部片单订阅
func (h *Handler) CollectionSocket(c *gin.Context) {
	sess := h.session(c)
	if !sess.Authenticated() {
		utils.Fail(c, apperr.Unauthorized(""))
		return
	}
	owner := sess.Owner()

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warnf("[Handler] websocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	sub, err := h.Hub.SubscribeCollection(owner)
	if err != nil {
		_ = conn.WriteJSON(wsMessage{Type: "error", Message: "订阅失败"})
		return
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// 读循环只用于感知客户端断开
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() error {
		lists, err := h.Lists.CollectionSnapshot(ctx, owner)
		msg := wsMessage{Type: "lists", Lists: lists}
		if err != nil {
			msg = wsMessage{Type: "error", Message: apperr.MessageOf(err)}
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}

	if err := send(); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.C:
			if !ok {
				return
			}
			if err := send(); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
