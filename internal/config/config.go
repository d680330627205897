// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Generation    GenerationConfig    `yaml:"generation" mapstructure:"generation"`
	Credits       CreditsConfig       `yaml:"credits" mapstructure:"credits"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey             string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL            string        `yaml:"base_url" mapstructure:"base_url"`
	Model              string        `yaml:"model" mapstructure:"model"`
	ContextWindow      int           `yaml:"context_window" mapstructure:"context_window"`
	CostPerInputToken  float64       `yaml:"cost_per_input_token" mapstructure:"cost_per_input_token"`
	CostPerOutputToken float64       `yaml:"cost_per_output_token" mapstructure:"cost_per_output_token"`
	SupportsStreaming  bool          `yaml:"supports_streaming" mapstructure:"supports_streaming"`
	MaxTokens          int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature        float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout            time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// GenerationConfig 生成编排配置
type GenerationConfig struct {
	// TokenEstimateRatio 字符/Token 估算比率
	TokenEstimateRatio float64 `yaml:"token_estimate_ratio" mapstructure:"token_estimate_ratio"`
	// DefaultWordsPerMinute 模拟流式输出的默认语速
	DefaultWordsPerMinute int `yaml:"default_words_per_minute" mapstructure:"default_words_per_minute"`
	// CacheTTL 上下文选择缓存有效期
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	// MaxConcurrentRequests 单项目并发生成上限
	MaxConcurrentRequests int `yaml:"max_concurrent_requests" mapstructure:"max_concurrent_requests"`
	// OverflowPolicy 超过并发上限时的策略：queue / reject
	OverflowPolicy string `yaml:"overflow_policy" mapstructure:"overflow_policy"`
	// MaxRetries 瞬时错误最大重试次数
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`
	// RetryBackoff 重试退避
	RetryBackoff BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
	// LengthMultiplier expand 操作的输出长度倍率
	LengthMultiplier float64 `yaml:"length_multiplier" mapstructure:"length_multiplier"`
	// BrainstormOutputTokens brainstorm/describe 的固定输出预估
	BrainstormOutputTokens int `yaml:"brainstorm_output_tokens" mapstructure:"brainstorm_output_tokens"`
	// ReservedOutputTokens 从模型上下文窗口为输出保留的 Token 数
	ReservedOutputTokens int `yaml:"reserved_output_tokens" mapstructure:"reserved_output_tokens"`
	// CardOutputTokens write/continue 按卡片长度档位的输出预估表
	CardOutputTokens map[string]int `yaml:"card_output_tokens" mapstructure:"card_output_tokens"`
	// DefaultCardLength 未指定时的卡片长度档位
	DefaultCardLength string `yaml:"default_card_length" mapstructure:"default_card_length"`
	// DefaultCardCount 未指定时的卡片数量
	DefaultCardCount int `yaml:"default_card_count" mapstructure:"default_card_count"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// CreditsConfig 信用点配置
type CreditsConfig struct {
	// UnitValue 一个信用点对应的货币成本
	UnitValue float64 `yaml:"unit_value" mapstructure:"unit_value"`
	// InitialAllotment 新项目的初始信用点
	InitialAllotment int64 `yaml:"initial_allotment" mapstructure:"initial_allotment"`
	// LowBalanceThreshold 低余额告警阈值
	LowBalanceThreshold int64 `yaml:"low_balance_threshold" mapstructure:"low_balance_threshold"`
	// HardBlockOnInsufficient 余额不足时硬阻断（false 为仅警告）
	HardBlockOnInsufficient bool `yaml:"hard_block_on_insufficient" mapstructure:"hard_block_on_insufficient"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen int `yaml:"max_len" mapstructure:"max_len"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter   string  `yaml:"exporter" mapstructure:"exporter"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
