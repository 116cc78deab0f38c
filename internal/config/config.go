package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Storage     StorageConfig
	Tracing     TracingConfig `mapstructure:"tracing"`
	Redis       RedisConfig
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Ordering    OrderingConfig    `mapstructure:"ordering"`
	Progress    ProgressConfig    `mapstructure:"progress"`
	Quiz        QuizConfig        `mapstructure:"quiz"`
	Enrollment  EnrollmentConfig  `mapstructure:"enrollment"`
	Payment     PaymentConfig     `mapstructure:"payment"`
	Certificate CertificateConfig `mapstructure:"certificate"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// OrderingConfig 排序事务相关配置
type OrderingConfig struct {
	// 事务隔离级别: serializable / repeatable_read / read_committed，空则使用数据库默认
	Isolation       string `mapstructure:"isolation"`
	DeleteIsolation string `mapstructure:"delete_isolation"`
	TxTimeoutSecs   int    `mapstructure:"tx_timeout_seconds"`
	LockWaitSecs    int    `mapstructure:"lock_wait_seconds"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

type ProgressConfig struct {
	EnforcePrerequisites bool `mapstructure:"enforce_prerequisites"`
}

type QuizConfig struct {
	PassingScore int `mapstructure:"passing_score"`
}

type EnrollmentConfig struct {
	// 开启后付费课程必须有成功的支付记录才能直接报名
	RequirePayment bool `mapstructure:"require_payment"`
}

// PaymentConfig 支付网关配置
type PaymentConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	APIUser          string `mapstructure:"api_user"`
	APIKey           string `mapstructure:"api_key"`
	RedirectURL      string `mapstructure:"redirect_url"`
	TimeoutSecs      int    `mapstructure:"timeout_seconds"`
	ReconcileCron    string `mapstructure:"reconcile_cron"`
	PendingTTLMins   int    `mapstructure:"pending_ttl_minutes"`
	WebhookDedupeTTL int    `mapstructure:"webhook_dedupe_seconds"`
}

type CertificateConfig struct {
	Issuer string `mapstructure:"issuer"`
	Folder string `mapstructure:"folder"`
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.charset", "utf8mb4")
	viper.SetDefault("database.parsetime", true)
	viper.SetDefault("jwt.expire_hours", 24)
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "uploads")
	viper.SetDefault("rate_limit.max_requests", 1000)
	viper.SetDefault("rate_limit.window_minutes", 1)

	viper.SetDefault("ordering.isolation", "repeatable_read")
	viper.SetDefault("ordering.delete_isolation", "serializable")
	viper.SetDefault("ordering.tx_timeout_seconds", 10)
	viper.SetDefault("ordering.lock_wait_seconds", 5)
	viper.SetDefault("ordering.max_retries", 3)

	viper.SetDefault("progress.enforce_prerequisites", true)
	viper.SetDefault("quiz.passing_score", 70)
	viper.SetDefault("enrollment.require_payment", false)

	viper.SetDefault("payment.timeout_seconds", 15)
	viper.SetDefault("payment.reconcile_cron", "@every 10m")
	viper.SetDefault("payment.pending_ttl_minutes", 60)
	viper.SetDefault("payment.webhook_dedupe_seconds", 300)

	viper.SetDefault("certificate.issuer", "Course Connect")
	viper.SetDefault("certificate.folder", "certificates")
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("COURSE_CONNECT")
	viper.AutomaticEnv()

	setDefaults()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Storage / OSS
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	viper.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	viper.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	viper.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Payment gateway
	viper.BindEnv("payment.base_url", "PAYMENT_BASE_URL")
	viper.BindEnv("payment.api_user", "PAYMENT_API_USER")
	viper.BindEnv("payment.api_key", "PAYMENT_API_KEY")
	viper.BindEnv("payment.redirect_url", "PAYMENT_REDIRECT_URL")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Quiz.PassingScore < 0 || cfg.Quiz.PassingScore > 100 {
		return nil, fmt.Errorf("quiz.passing_score must be within [0, 100], got %d", cfg.Quiz.PassingScore)
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// TxTimeout 排序类事务的超时时间
func (c OrderingConfig) TxTimeout() time.Duration {
	if c.TxTimeoutSecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TxTimeoutSecs) * time.Second
}
