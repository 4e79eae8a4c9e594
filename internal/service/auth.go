package service

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/user/movielist/internal/apperr"
	"github.com/user/movielist/internal/model"
	"github.com/user/movielist/internal/repository"
)

// RegisterInput 注册参数
type RegisterInput struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Username string `json:"username" form:"username" validate:"required,min=2,max=32"`
	Password string `json:"password" form:"password" validate:"required,min=6,max=72"`
}

// LoginInput 登录参数
type LoginInput struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// AuthService 身份解析：匿名登录、注册（匿名账户升级）、登录
type AuthService struct {
	users     *repository.UserRepository
	namespace string
	validate  *validator.Validate
	logger    *log.Logger
}

func NewAuthService(users *repository.UserRepository, namespace string, logger *log.Logger) *AuthService {
	return &AuthService{
		users:     users,
		namespace: namespace,
		validate:  validator.New(),
		logger:    logger,
	}
}

// OwnerOf 用户对应的片单所有者
func (s *AuthService) OwnerOf(user *model.User) model.Owner {
	return model.Owner{Namespace: s.namespace, ID: user.UID}
}

// SignInAnonymously 创建匿名账户
func (s *AuthService) SignInAnonymously(ctx context.Context) (*model.User, error) {
	user, err := s.users.CreateAnonymous(ctx)
	if err != nil {
		s.logger.Errorf("[AuthService] 匿名登录失败: %v", err)
		return nil, apperr.Store("SignInAnonymously", err)
	}
	return user, nil
}

// Resolve 根据令牌中的 UID 找回账户，账户已被清理时返回 nil
func (s *AuthService) Resolve(ctx context.Context, uid string) (*model.User, error) {
	user, err := s.users.FindByUID(ctx, uid)
	if err != nil {
		return nil, apperr.Store("Resolve", err)
	}
	if user != nil {
		if err := s.users.Touch(ctx, uid); err != nil {
			s.logger.Warnf("[AuthService] 更新活跃时间失败: %v", err)
		}
	}
	return user, nil
}

// Register 将当前匿名账户升级为正式账户，名下片单保留
func (s *AuthService) Register(ctx context.Context, uid string, in RegisterInput) (*model.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.Validation("请填写有效的邮箱、用户名（2-32 字符）和密码（至少 6 位）")
	}

	current, err := s.users.FindByUID(ctx, uid)
	if err != nil {
		return nil, apperr.Store("Register", err)
	}
	if current == nil {
		return nil, apperr.Unauthorized("")
	}
	if !current.IsAnonymous() {
		return nil, apperr.Validation("当前账户已注册")
	}

	user, err := s.users.Upgrade(ctx, uid, in.Email, in.Username, in.Password)
	if errors.Is(err, repository.ErrEmailTaken) {
		return nil, apperr.Validation("该邮箱已被注册")
	}
	if err != nil {
		s.logger.Errorf("[AuthService] 注册失败: %v", err)
		return nil, apperr.Store("Register", err)
	}
	s.logger.Infof("[AuthService] 匿名账户 %s 已升级", uid)
	return user, nil
}

// Login 邮箱密码登录
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*model.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.Validation("请输入邮箱和密码")
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, apperr.Store("Login", err)
	}
	if user == nil || !s.users.CheckPassword(user, in.Password) {
		return nil, apperr.Unauthorized("邮箱或密码错误")
	}
	return user, nil
}
