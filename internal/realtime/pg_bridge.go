package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// PGNotifier 通过 pg_notify 广播变更，由各实例的 PGListener 转发给本地 Hub
type PGNotifier struct {
	db      *gorm.DB
	channel string
}

func NewPGNotifier(db *gorm.DB, channel string) *PGNotifier {
	return &PGNotifier{db: db, channel: channel}
}

func (n *PGNotifier) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return n.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", n.channel, string(payload)).Error
}

// PGListener 监听 NOTIFY 并投递到本地 Hub
type PGListener struct {
	listener *pq.Listener
	hub      *Hub
	channel  string
	logger   *log.Logger
}

// NewPGListener 建立监听连接，连接断开时 pq 会自动重连
func NewPGListener(dsn, channel string, hub *Hub, logger *log.Logger) (*PGListener, error) {
	logger = logger.WithPrefix("realtime")
	l := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("监听连接异常", "event", ev, "err", err)
		}
	})
	if err := l.Listen(channel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("LISTEN %s 失败: %w", channel, err)
	}
	return &PGListener{listener: l, hub: hub, channel: channel, logger: logger}, nil
}

// Run 阻塞直到 ctx 结束
func (p *PGListener) Run(ctx context.Context) {
	defer p.listener.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-p.listener.Notify:
			if n == nil {
				// 重连后可能丢失通知，订阅方只能等待下一次变更
				p.logger.Info("监听连接已重建", "channel", p.channel)
				continue
			}
			change, err := decodeChange(n.Extra)
			if err != nil {
				p.logger.Warn("忽略无法解析的通知", "payload", n.Extra, "err", err)
				continue
			}
			if err := p.hub.Publish(ctx, change); err != nil {
				return
			}
		case <-time.After(90 * time.Second):
			go func() {
				if err := p.listener.Ping(); err != nil {
					p.logger.Warn("监听连接 ping 失败", "err", err)
				}
			}()
		}
	}
}

func decodeChange(payload string) (Change, error) {
	var change Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return Change{}, err
	}
	if change.Namespace == "" || change.OwnerID == "" || change.ListID == "" {
		return Change{}, fmt.Errorf("通知缺少字段: %q", payload)
	}
	return change, nil
}
