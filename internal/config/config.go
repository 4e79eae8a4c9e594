package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const defaultSecret = "your-secret-key-change-in-production"

// Config 应用配置
type Config struct {
	Env         string
	AppSecret   string
	DatabaseURL string
	JWTExpiry   time.Duration
	Port        string
	SiteName    string
	SiteUrl     string

	// Namespace 片单文档路径的命名空间前缀
	Namespace string
	LogLevel  string

	// RealtimeDriver memory 为进程内推送，postgres 通过 LISTEN/NOTIFY 在多实例间同步
	RealtimeDriver  string
	RealtimeChannel string

	AnonSignInPerMinute int
	SnapshotCacheSize   int
	SnapshotCacheTTL    time.Duration
	AnonRetention       time.Duration
}

// fileConfig 可选的 TOML 配置文件，键名与环境变量一致（小写）
// 优先级: 环境变量 > 配置文件 > 默认值
type fileConfig map[string]any

// Load 加载配置，CONFIG_FILE 指向的 TOML 文件作为环境变量之下的默认值
func Load() (*Config, error) {
	file := fileConfig{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
		}
	}
	get := func(key, defaultValue string) string {
		return getEnv(key, file.lookup(key, defaultValue))
	}

	expiryHours, err := strconv.Atoi(get("JWT_EXPIRY_HOURS", "72"))
	if err != nil {
		return nil, fmt.Errorf("JWT_EXPIRY_HOURS 无效: %w", err)
	}
	anonPerMinute, err := strconv.Atoi(get("ANON_SIGNIN_PER_MINUTE", "10"))
	if err != nil {
		return nil, fmt.Errorf("ANON_SIGNIN_PER_MINUTE 无效: %w", err)
	}
	cacheSize, err := strconv.Atoi(get("SNAPSHOT_CACHE_SIZE", "512"))
	if err != nil {
		return nil, fmt.Errorf("SNAPSHOT_CACHE_SIZE 无效: %w", err)
	}
	cacheTTL, err := strconv.Atoi(get("SNAPSHOT_CACHE_TTL_SECONDS", "300"))
	if err != nil {
		return nil, fmt.Errorf("SNAPSHOT_CACHE_TTL_SECONDS 无效: %w", err)
	}
	retentionDays, err := strconv.Atoi(get("ANON_RETENTION_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("ANON_RETENTION_DAYS 无效: %w", err)
	}

	dbURL := get("DATABASE_URL", "")
	if dbURL == "" {
		dbURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			get("DB_USER", "postgres"),
			get("DB_PASSWORD", "postgres"),
			get("DB_HOST", "localhost"),
			get("DB_PORT", "5432"),
			get("DB_NAME", "movielist"),
			get("DB_SSLMODE", "disable"))
	}

	env := get("APP_ENV", "development")
	appSecret := get("APP_SECRET", get("JWT_SECRET", defaultSecret))
	if env == "production" && appSecret == defaultSecret {
		return nil, fmt.Errorf("生产环境必须设置 APP_SECRET")
	}

	driver := strings.ToLower(get("REALTIME_DRIVER", "memory"))
	if driver != "memory" && driver != "postgres" {
		return nil, fmt.Errorf("REALTIME_DRIVER 只能是 memory 或 postgres: %q", driver)
	}

	port := get("PORT", "5005")
	return &Config{
		Env:                 env,
		AppSecret:           appSecret,
		DatabaseURL:         dbURL,
		JWTExpiry:           time.Duration(expiryHours) * time.Hour,
		Port:                port,
		SiteName:            get("SITE_NAME", "Movie List"),
		SiteUrl:             get("SITE_URL", "http://localhost:"+port),
		Namespace:           get("APP_NAMESPACE", "default"),
		LogLevel:            get("LOG_LEVEL", "info"),
		RealtimeDriver:      driver,
		RealtimeChannel:     get("REALTIME_CHANNEL", "movie_list_changes"),
		AnonSignInPerMinute: anonPerMinute,
		SnapshotCacheSize:   cacheSize,
		SnapshotCacheTTL:    time.Duration(cacheTTL) * time.Second,
		AnonRetention:       time.Duration(retentionDays) * 24 * time.Hour,
	}, nil
}

func (f fileConfig) lookup(key, defaultValue string) string {
	v, ok := f[strings.ToLower(key)]
	if !ok {
		return defaultValue
	}
	return fmt.Sprint(v)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
