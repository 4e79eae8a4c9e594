package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheItem[T any] struct {
	value     T
	expiredAt time.Time
}

// LRUCache 带过期时间的定长 LRU 缓存，并发安全
type LRUCache[T any] struct {
	storage *lru.Cache[string, cacheItem[T]]
	ttl     time.Duration
}

// NewLRUCache size 为最大条数，ttl 为数据有效期
func NewLRUCache[T any](size int, ttl time.Duration) *LRUCache[T] {
	if size <= 0 {
		size = 1
	}
	c, _ := lru.New[string, cacheItem[T]](size)
	return &LRUCache[T]{storage: c, ttl: ttl}
}

func (c *LRUCache[T]) Set(key string, value T) {
	c.storage.Add(key, cacheItem[T]{value: value, expiredAt: time.Now().Add(c.ttl)})
}

// Get 读取缓存，过期条目会被顺带移除
func (c *LRUCache[T]) Get(key string) (T, bool) {
	var zero T
	item, ok := c.storage.Get(key)
	if !ok {
		return zero, false
	}
	if time.Now().After(item.expiredAt) {
		c.storage.Remove(key)
		return zero, false
	}
	return item.value, true
}

func (c *LRUCache[T]) Len() int {
	return c.storage.Len()
}
