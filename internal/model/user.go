package model

import (
	"time"
)

// 用户角色
const (
	RoleAnonymous = "anonymous"
	RoleUser      = "user"
)

// User 用户模型，UID 即片单的所有者标识
type User struct {
	ID           int       `json:"id" gorm:"primaryKey"`
	UID          string    `json:"uid" gorm:"size:36;uniqueIndex"`
	Email        *string   `json:"email,omitempty" gorm:"uniqueIndex"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role" gorm:"size:16;index"`
	CreatedAt    time.Time `json:"created_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

// IsAnonymous 是否为匿名账户
func (u *User) IsAnonymous() bool {
	return u.Role == RoleAnonymous
}

