package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"github.com/user/movielist/internal/apperr"
	"github.com/user/movielist/internal/model"
	"github.com/user/movielist/internal/service"
	"github.com/user/movielist/internal/utils"
	"golang.org/x/time/rate"
)

// 上下文键
const (
	ctxUID      = "uid"
	ctxRole     = "role"
	ctxSignedIn = "anonymous_signed_in"
)

// TokenCookie 令牌所在的 Cookie 名
const TokenCookie = "token"

// Claims JWT 声明
type Claims struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AnonLimiter 按客户端 IP 限制匿名登录频率
type AnonLimiter struct {
	mu        sync.Mutex
	limiters  *cache.Cache
	perMinute int
}

// NewAnonLimiter perMinute <= 0 时不限流
func NewAnonLimiter(perMinute int) *AnonLimiter {
	return &AnonLimiter{
		limiters:  cache.New(10*time.Minute, 20*time.Minute),
		perMinute: perMinute,
	}
}

// Allow 是否允许该 IP 再创建一个匿名账户
func (l *AnonLimiter) Allow(ip string) bool {
	if l == nil || l.perMinute <= 0 {
		return true
	}
	key := utils.HashIP(ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	var limiter *rate.Limiter
	if v, ok := l.limiters.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)
	}
	l.limiters.SetDefault(key, limiter)
	return limiter.Allow()
}

// Authenticator 解析请求身份，没有有效令牌时自动匿名登录
type Authenticator struct {
	Secret  string
	Expiry  time.Duration
	Auth    *service.AuthService
	Limiter *AnonLimiter
	Logger  *log.Logger
}

// Authenticate 身份中间件，保证后续处理器总能拿到 UID
func (a *Authenticator) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := extractClaims(c, a.Secret); err == nil {
			user, err := a.Auth.Resolve(c.Request.Context(), claims.UID)
			if err != nil {
				utils.Fail(c, err)
				c.Abort()
				return
			}
			if user != nil {
				c.Set(ctxUID, user.UID)
				c.Set(ctxRole, user.Role)

				// 滑动续期：有效期消耗超过一半时刷新
				if shouldRefresh(claims) {
					if err := a.IssueToken(c, user); err != nil {
						a.Logger.Warnf("[Auth] 刷新令牌失败: %v", err)
					}
				}
				c.Next()
				return
			}
		}

		if !a.Limiter.Allow(c.ClientIP()) {
			utils.Fail(c, apperr.RateLimited())
			c.Abort()
			return
		}
		user, err := a.Auth.SignInAnonymously(c.Request.Context())
		if err != nil {
			utils.Fail(c, err)
			c.Abort()
			return
		}
		if err := a.IssueToken(c, user); err != nil {
			a.Logger.Errorf("[Auth] 签发令牌失败: %v", err)
			utils.Fail(c, apperr.Store("IssueToken", err))
			c.Abort()
			return
		}
		c.Set(ctxSignedIn, true)
		c.Next()
	}
}

// IssueToken 签发令牌写入 Cookie，并更新当前请求的身份
func (a *Authenticator) IssueToken(c *gin.Context, user *model.User) error {
	token, err := GenerateToken(user.UID, user.Role, a.Secret, a.Expiry)
	if err != nil {
		return err
	}
	c.SetCookie(TokenCookie, token, int(a.Expiry.Seconds()), "/", "", false, true)
	c.Set(ctxUID, user.UID)
	c.Set(ctxRole, user.Role)
	return nil
}

// ClearToken 清除令牌 Cookie
func ClearToken(c *gin.Context) {
	c.SetCookie(TokenCookie, "", -1, "/", "", false, true)
}

// extractClaims 从 Cookie 或 Header 中提取 JWT Claims
func extractClaims(c *gin.Context, jwtSecret string) (*Claims, error) {
	var tokenString string

	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		tokenString = cookie
	} else {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}

	if tokenString == "" {
		return nil, jwt.ErrTokenMalformed
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

// GetUID 从上下文获取当前 UID
func GetUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

// GetRole 从上下文获取当前角色
func GetRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}

// SignedInAnonymously 本次请求是否刚完成匿名登录
func SignedInAnonymously(c *gin.Context) bool {
	return c.GetBool(ctxSignedIn)
}

// GenerateToken 生成 JWT Token
func GenerateToken(uid, role, jwtSecret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UID:  uid,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// shouldRefresh 已消耗总有效期的 50% 以上时刷新
func shouldRefresh(claims *Claims) bool {
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return false
	}

	total := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	return time.Since(claims.IssuedAt.Time) > total/2
}
