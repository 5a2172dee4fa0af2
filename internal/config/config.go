// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	LLM       LLMConfig       `mapstructure:"llm"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Billing   BillingConfig   `mapstructure:"billing"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowOrigins   []string `mapstructure:"allow_origins"`
	// TrustedProxies 是允许设置 X-Forwarded-For 的反向代理 IP/CIDR，为空时只信任连接的对端地址。
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers   string `mapstructure:"brokers"`
	LeadTopic string `mapstructure:"lead_topic"`
	GroupID   string `mapstructure:"group_id"`
}

// MinIOConfig 存储 MinIO 对象存储的配置，发布的站点快照写入 BucketName。
type MinIOConfig struct {
	Endpoint           string `mapstructure:"endpoint"`
	AccessKeyID        string `mapstructure:"access_key_id"`
	SecretAccessKey    string `mapstructure:"secret_access_key"`
	UseSSL             bool   `mapstructure:"use_ssl"`
	BucketName         string `mapstructure:"bucket_name"`
	PresignExpireHours int    `mapstructure:"presign_expire_hours"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey             string              `mapstructure:"api_key"`
	BaseURL            string              `mapstructure:"base_url"`
	Model              string              `mapstructure:"model"`
	IdleTimeoutSeconds int                 `mapstructure:"idle_timeout_seconds"`
	Generation         LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// IdleTimeout 返回上游流的空闲读取超时。
func (c LLMConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// RateLimitConfig 存储各个接口的限流配置。
// Backend 为 "memory" 时每个进程独立计数，为 "redis" 时多实例共享计数。
type RateLimitConfig struct {
	Backend        string      `mapstructure:"backend"`
	SweepThreshold int         `mapstructure:"sweep_threshold"`
	Chat           LimitConfig `mapstructure:"chat"`
	Blog           LimitConfig `mapstructure:"blog"`
	Lead           LimitConfig `mapstructure:"lead"`
	Portal         LimitConfig `mapstructure:"portal"`
	Publish        LimitConfig `mapstructure:"publish"`
}

// LimitConfig 是单个限流实例的窗口配置。
type LimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// Window 返回窗口时长。
func (c LimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// BillingConfig 存储支付服务（客户门户）相关的配置。
type BillingConfig struct {
	APIBaseURL string `mapstructure:"api_base_url"`
	SecretKey  string `mapstructure:"secret_key"`
	ReturnURL  string `mapstructure:"return_url"`
}

// setDefaults 注册默认值，配置文件缺失的项回退到这里。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("llm.idle_timeout_seconds", 30)
	v.SetDefault("minio.presign_expire_hours", 24)
	v.SetDefault("kafka.lead_topic", "lead-submitted")
	v.SetDefault("kafka.group_id", "roofsite-lead-notifier")

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.sweep_threshold", 10000)
	v.SetDefault("rate_limit.chat.max_requests", 20)
	v.SetDefault("rate_limit.chat.window_seconds", 60)
	v.SetDefault("rate_limit.blog.max_requests", 3)
	v.SetDefault("rate_limit.blog.window_seconds", 3600)
	v.SetDefault("rate_limit.lead.max_requests", 5)
	v.SetDefault("rate_limit.lead.window_seconds", 60)
	v.SetDefault("rate_limit.portal.max_requests", 10)
	v.SetDefault("rate_limit.portal.window_seconds", 60)
	v.SetDefault("rate_limit.publish.max_requests", 10)
	v.SetDefault("rate_limit.publish.window_seconds", 60)
}

// Load 从指定路径读取 YAML 文件并返回解析后的配置，不修改全局变量。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.RateLimit.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// validate 拒绝非正的限额和窗口。
func (c RateLimitConfig) validate() error {
	limits := []struct {
		name string
		lc   LimitConfig
	}{
		{"chat", c.Chat},
		{"blog", c.Blog},
		{"lead", c.Lead},
		{"portal", c.Portal},
		{"publish", c.Publish},
	}
	for _, l := range limits {
		if l.lc.MaxRequests <= 0 || l.lc.WindowSeconds <= 0 {
			return fmt.Errorf("rate_limit.%s: max_requests 和 window_seconds 必须为正数 (got %d, %d)",
				l.name, l.lc.MaxRequests, l.lc.WindowSeconds)
		}
	}
	return nil
}

// Init 初始化配置加载，解析结果写入 Conf 变量。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
