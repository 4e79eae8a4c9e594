package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/user/movielist/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrEmailTaken 邮箱已被其他账户使用
var ErrEmailTaken = errors.New("email already registered")

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateAnonymous 创建匿名账户，分配新的 UID
func (r *UserRepository) CreateAnonymous(ctx context.Context) (*model.User, error) {
	now := time.Now()
	user := &model.User{
		UID:        uuid.NewString(),
		Username:   "游客",
		Role:       model.RoleAnonymous,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Upgrade 为匿名账户绑定邮箱和密码，UID 不变，名下片单随之保留
func (r *UserRepository) Upgrade(ctx context.Context, uid, email, username, password string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var user model.User
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&model.User{}).Where("email = ?", email).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrEmailTaken
		}
		if err := tx.Where("uid = ?", uid).First(&user).Error; err != nil {
			return err
		}

		user.Email = &email
		user.Username = username
		user.PasswordHash = string(hash)
		user.Role = model.RoleUser
		return tx.Save(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail 根据邮箱查找用户，不存在时返回 nil, nil
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUID 根据 UID 查找用户，不存在时返回 nil, nil
func (r *UserRepository) FindByUID(ctx context.Context, uid string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CheckPassword 验证密码
func (r *UserRepository) CheckPassword(user *model.User, password string) bool {
	if user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// Touch 更新最后活跃时间
func (r *UserRepository) Touch(ctx context.Context, uid string) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("uid = ?", uid).Update("last_seen_at", time.Now()).Error
}

// DeleteStaleAnonymous 删除长期未活跃且名下没有任何片单的匿名账户
func (r *UserRepository) DeleteStaleAnonymous(ctx context.Context, before time.Time) (int64, error) {
	owned := r.db.Model(&model.MovieList{}).Select("1").Where("movie_lists.owner_id = users.uid")
	res := r.db.WithContext(ctx).
		Where("role = ? AND last_seen_at < ?", model.RoleAnonymous, before).
		Where("NOT EXISTS (?)", owned).
		Delete(&model.User{})
	return res.RowsAffected, res.Error
}
