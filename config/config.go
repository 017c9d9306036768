package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath 默认配置文件路径，可通过 CONFIG_PATH 覆盖
const DefaultConfigPath = "config/config.yaml"

// Config 应用配置结构体
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Auth      AuthConfig      `yaml:"auth"`
	Upload    UploadConfig    `yaml:"upload"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port         string        `yaml:"port"`         // 服务器监听端口
	ReadTimeout  time.Duration `yaml:"readTimeout"`  // 读取超时时间
	WriteTimeout time.Duration `yaml:"writeTimeout"` // 写入超时时间
	IdleTimeout  time.Duration `yaml:"idleTimeout"`  // 空闲超时时间
	// 可信反向代理（IP或CIDR），为空时不信任 X-Forwarded-For
	TrustedProxies []string `yaml:"trustedProxies"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver      string `yaml:"driver"`      // 数据库驱动类型 mysql/postgres/sqlite
	Host        string `yaml:"host"`        // 数据库主机地址
	Port        int    `yaml:"port"`        // 数据库端口
	Username    string `yaml:"username"`    // 数据库用户名
	Password    string `yaml:"password"`    // 数据库密码
	Database    string `yaml:"database"`    // 数据库名称（sqlite 时为文件路径）
	Charset     string `yaml:"charset"`     // 字符集
	SSLMode     string `yaml:"sslMode"`     // postgres sslmode
	MaxIdle     int    `yaml:"maxIdle"`     // 最大空闲连接数
	MaxOpen     int    `yaml:"maxOpen"`     // 最大打开连接数
	AutoMigrate bool   `yaml:"autoMigrate"` // 启动时执行 gorm 自动迁移
	LogSQL      bool   `yaml:"logSQL"`      // 打印SQL
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret     string        `yaml:"secret"`     // JWT密钥
	ExpireTime time.Duration `yaml:"expireTime"` // JWT过期时间
	Issuer     string        `yaml:"issuer"`     // JWT签发者
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`      // 日志级别
	Filename   string `yaml:"filename"`   // 日志文件名
	MaxSize    int    `yaml:"maxSize"`    // 单个日志文件最大大小(MB)
	MaxBackups int    `yaml:"maxBackups"` // 最大备份文件数
	MaxAge     int    `yaml:"maxAge"`     // 最大保存天数
	Compress   bool   `yaml:"compress"`   // 是否压缩
	Console    bool   `yaml:"console"`    // 同时输出到标准输出
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`  // 未启用时会话校验直接走数据库
	Host     string `yaml:"host"`     // Redis主机地址
	Port     int    `yaml:"port"`     // Redis端口
	Password string `yaml:"password"` // Redis密码
	DB       int    `yaml:"db"`       // Redis数据库编号
}

// WebSocketConfig WebSocket 刷新提示配置
type WebSocketConfig struct {
	Enabled      bool          `yaml:"enabled"`      // 是否开启 /ws
	PingInterval time.Duration `yaml:"pingInterval"` // 发送ping的间隔
	ReadTimeout  time.Duration `yaml:"readTimeout"`  // 读超时时间（未收到任何数据则断开）
}

// AuthConfig 登录相关配置
type AuthConfig struct {
	CookieName      string        `yaml:"cookieName"`      // 令牌 cookie 名称
	CookieSecure    bool          `yaml:"cookieSecure"`    // 仅 https 下发送
	CookieDomain    string        `yaml:"cookieDomain"`    // cookie 域
	SessionCacheTTL time.Duration `yaml:"sessionCacheTTL"` // Redis 会话缓存最长时间
	RateLimitWindow time.Duration `yaml:"rateLimitWindow"` // 登录限流窗口
	RateLimitMax    int           `yaml:"rateLimitMax"`    // 窗口内每个IP最大请求数，0 表示不限流
}

// UploadConfig 头像上传配置
type UploadConfig struct {
	AvatarDir      string `yaml:"avatarDir"`      // 头像存储目录
	MaxAvatarBytes int64  `yaml:"maxAvatarBytes"` // 头像最大字节数
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoadConfig 加载配置（混合方式：YAML文件 + 环境变量）
func LoadConfig() *Config {
	// 0. 读取 .env（不存在时忽略）
	_ = godotenv.Load()

	// 1. 首先从YAML文件加载默认配置
	config := loadFromYAML(getEnv("CONFIG_PATH", DefaultConfigPath))

	// 2. 用环境变量覆盖配置（环境变量优先级更高）
	overrideWithEnvVars(config)

	return config
}

// loadFromYAML 从YAML文件加载配置，文件中未出现的字段保留默认值
func loadFromYAML(filePath string) *Config {
	config := GetDefaultConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		// 如果文件不存在，返回默认配置
		return config
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		// 如果解析失败，返回默认配置
		return GetDefaultConfig()
	}

	return config
}

// overrideWithEnvVars 用环境变量覆盖配置
func overrideWithEnvVars(config *Config) {
	// 服务器配置
	if port := getEnv("SERVER_PORT", ""); port != "" {
		config.Server.Port = port
	}
	if timeout := getEnvDuration("SERVER_READ_TIMEOUT", 0); timeout > 0 {
		config.Server.ReadTimeout = timeout
	}
	if timeout := getEnvDuration("SERVER_WRITE_TIMEOUT", 0); timeout > 0 {
		config.Server.WriteTimeout = timeout
	}
	if timeout := getEnvDuration("SERVER_IDLE_TIMEOUT", 0); timeout > 0 {
		config.Server.IdleTimeout = timeout
	}
	if proxies := getEnv("SERVER_TRUSTED_PROXIES", ""); proxies != "" {
		config.Server.TrustedProxies = splitList(proxies)
	}

	// 数据库配置
	if driver := getEnv("DB_DRIVER", ""); driver != "" {
		config.Database.Driver = driver
	}
	if host := getEnv("DB_HOST", ""); host != "" {
		config.Database.Host = host
	}
	if port := getEnvInt("DB_PORT", 0); port > 0 {
		config.Database.Port = port
	}
	if username := getEnv("DB_USERNAME", ""); username != "" {
		config.Database.Username = username
	}
	if password := getEnv("DB_PASSWORD", ""); password != "" {
		config.Database.Password = password
	}
	if database := getEnv("DB_DATABASE", ""); database != "" {
		config.Database.Database = database
	}
	if charset := getEnv("DB_CHARSET", ""); charset != "" {
		config.Database.Charset = charset
	}
	if sslMode := getEnv("DB_SSLMODE", ""); sslMode != "" {
		config.Database.SSLMode = sslMode
	}
	if maxIdle := getEnvInt("DB_MAX_IDLE", 0); maxIdle > 0 {
		config.Database.MaxIdle = maxIdle
	}
	if maxOpen := getEnvInt("DB_MAX_OPEN", 0); maxOpen > 0 {
		config.Database.MaxOpen = maxOpen
	}
	config.Database.AutoMigrate = getEnvBool("DB_AUTO_MIGRATE", config.Database.AutoMigrate)
	config.Database.LogSQL = getEnvBool("DB_LOG_SQL", config.Database.LogSQL)

	// JWT配置
	if secret := getEnv("JWT_SECRET", ""); secret != "" {
		config.JWT.Secret = secret
	}
	if expireTime := getEnvDuration("JWT_EXPIRE_TIME", 0); expireTime > 0 {
		config.JWT.ExpireTime = expireTime
	}
	if issuer := getEnv("JWT_ISSUER", ""); issuer != "" {
		config.JWT.Issuer = issuer
	}

	// 日志配置
	if level := getEnv("LOG_LEVEL", ""); level != "" {
		config.Log.Level = level
	}
	if filename := getEnv("LOG_FILENAME", ""); filename != "" {
		config.Log.Filename = filename
	}
	if maxSize := getEnvInt("LOG_MAX_SIZE", 0); maxSize > 0 {
		config.Log.MaxSize = maxSize
	}
	if maxBackups := getEnvInt("LOG_MAX_BACKUPS", 0); maxBackups > 0 {
		config.Log.MaxBackups = maxBackups
	}
	if maxAge := getEnvInt("LOG_MAX_AGE", 0); maxAge > 0 {
		config.Log.MaxAge = maxAge
	}
	config.Log.Console = getEnvBool("LOG_CONSOLE", config.Log.Console)

	// Redis配置
	config.Redis.Enabled = getEnvBool("REDIS_ENABLED", config.Redis.Enabled)
	if host := getEnv("REDIS_HOST", ""); host != "" {
		config.Redis.Host = host
	}
	if port := getEnvInt("REDIS_PORT", 0); port > 0 {
		config.Redis.Port = port
	}
	if password := getEnv("REDIS_PASSWORD", ""); password != "" {
		config.Redis.Password = password
	}
	if db := getEnvInt("REDIS_DB", -1); db >= 0 {
		config.Redis.DB = db
	}

	// WebSocket配置
	config.WebSocket.Enabled = getEnvBool("WS_ENABLED", config.WebSocket.Enabled)
	if d := getEnvDuration("WS_PING_INTERVAL", 0); d > 0 {
		config.WebSocket.PingInterval = d
	}
	if d := getEnvDuration("WS_READ_TIMEOUT", 0); d > 0 {
		config.WebSocket.ReadTimeout = d
	}

	// 认证配置
	if name := getEnv("AUTH_COOKIE_NAME", ""); name != "" {
		config.Auth.CookieName = name
	}
	config.Auth.CookieSecure = getEnvBool("AUTH_COOKIE_SECURE", config.Auth.CookieSecure)
	if domain := getEnv("AUTH_COOKIE_DOMAIN", ""); domain != "" {
		config.Auth.CookieDomain = domain
	}
	if d := getEnvDuration("AUTH_SESSION_CACHE_TTL", 0); d > 0 {
		config.Auth.SessionCacheTTL = d
	}
	if d := getEnvDuration("AUTH_RATE_LIMIT_WINDOW", 0); d > 0 {
		config.Auth.RateLimitWindow = d
	}
	if n := getEnvInt("AUTH_RATE_LIMIT_MAX", -1); n >= 0 {
		config.Auth.RateLimitMax = n
	}

	// 上传配置
	if dir := getEnv("UPLOAD_AVATAR_DIR", ""); dir != "" {
		config.Upload.AvatarDir = dir
	}
	if size := getEnvInt("UPLOAD_MAX_AVATAR_BYTES", 0); size > 0 {
		config.Upload.MaxAvatarBytes = int64(size)
	}

	// 指标配置
	config.Metrics.Enabled = getEnvBool("METRICS_ENABLED", config.Metrics.Enabled)
	if path := getEnv("METRICS_PATH", ""); path != "" {
		config.Metrics.Path = path
	}
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:      "mysql",
			Host:        "localhost",
			Port:        3306,
			Username:    "vst_user",
			Password:    "",
			Database:    "vst_portal",
			Charset:     "utf8mb4",
			SSLMode:     "disable",
			MaxIdle:     10,
			MaxOpen:     100,
			AutoMigrate: true,
		},
		JWT: JWTConfig{
			Secret:     "change-me-in-production",
			ExpireTime: 7 * 24 * time.Hour,
			Issuer:     "vst-portal",
		},
		Log: LogConfig{
			Level:      "info",
			Filename:   "logs/app.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     6379,
			Password: "",
			DB:       0,
		},
		WebSocket: WebSocketConfig{
			Enabled:      false,
			PingInterval: 30 * time.Second,
			ReadTimeout:  90 * time.Second,
		},
		Auth: AuthConfig{
			CookieName:      "auth_token",
			CookieSecure:    false,
			SessionCacheTTL: 5 * time.Minute,
			RateLimitWindow: time.Minute,
			RateLimitMax:    20,
		},
		Upload: UploadConfig{
			AvatarDir:      "uploads/avatars",
			MaxAvatarBytes: 5 * 1024 * 1024,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// 辅助函数：获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// 辅助函数：按逗号拆分列表，忽略空项
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// 辅助函数：获取整数环境变量
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// 辅助函数：获取布尔环境变量
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// 辅助函数：获取时间环境变量
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
