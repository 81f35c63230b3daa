// Package config 提供 TOML 配置加载、.env 与环境变量覆盖以及配置校验
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/wyfcoding/fxoption/pkg/logger"
	pkgconfig "github.com/wyfcoding/pkg/config"
)

// Config 外汇期权服务配置
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// gRPC 服务配置
	GRPC GRPCConfig `mapstructure:"grpc"`
	// 日志配置
	Logger logger.Config `mapstructure:"logger"`
	// 链路追踪配置（OTLP gRPC 导出）
	Tracing pkgconfig.TracingConfig `mapstructure:"tracing"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 限流配置
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	// 默认市场参数
	Market MarketConfig `mapstructure:"market"`
	// 默认行权价网格
	Chain ChainConfig `mapstructure:"chain"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
	// 允许跨域的来源，空表示 *
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// Addr 返回 host:port
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GRPCConfig gRPC 服务配置
type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// 最大并发流数
	MaxConcurrentStreams int `mapstructure:"max_concurrent_streams"`
	// 是否注册反射服务
	Reflection bool `mapstructure:"reflection"`
}

// Addr 返回 host:port
func (c GRPCConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// RateLimitConfig 按客户端限流配置
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// 每秒补充的令牌数
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	// 桶容量
	Burst int `mapstructure:"burst"`
}

// MarketConfig 默认市场参数（页面控件的初始值）
type MarketConfig struct {
	// 即期汇率
	Spot float64 `mapstructure:"spot"`
	// 期货价格，仅用于展示
	Future float64 `mapstructure:"future"`
	// 年化波动率（小数）
	Volatility float64 `mapstructure:"volatility"`
	// 本币无风险利率
	DomesticRate float64 `mapstructure:"domestic_rate"`
	// 外币无风险利率
	ForeignRate float64 `mapstructure:"foreign_rate"`
	// 到期天数
	DaysToExpiry float64 `mapstructure:"days_to_expiry"`
}

// ChainConfig 默认行权价网格
type ChainConfig struct {
	LowerOffset float64 `mapstructure:"lower_offset"`
	UpperOffset float64 `mapstructure:"upper_offset"`
	Step        float64 `mapstructure:"step"`
	// 单次请求允许的最大行数
	MaxRows int `mapstructure:"max_rows"`
}

// Load 从 TOML 文件加载配置，文件必须存在
func Load(configPath string) (*Config, error) {
	return load(configPath, true)
}

// LoadWithDefaults 从 TOML 文件加载配置，文件不存在时只使用默认值与环境变量
func LoadWithDefaults(configPath string) (*Config, error) {
	return load(configPath, false)
}

func load(configPath string, required bool) (*Config, error) {
	// .env 只补充尚未设置的环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			if required || !isNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	} else if required {
		return nil, errors.New("config path is required")
	}

	// 环境变量前缀 APP，key 中的 . 替换为 _
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	cfg.Logger.Service = cfg.ServiceName
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = cfg.ServiceName
	}
	return &cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.GRPC.Port <= 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("invalid rate limit: rps=%v burst=%d", c.RateLimit.RequestsPerSecond, c.RateLimit.Burst)
	}
	if c.Tracing.Enabled && c.Tracing.OTLPEndpoint == "" {
		return errors.New("tracing.otlp_endpoint is required when tracing is enabled")
	}
	if c.Market.Spot <= 0 {
		return fmt.Errorf("market.spot must be positive, got %v", c.Market.Spot)
	}
	if c.Market.Volatility < 0 {
		return fmt.Errorf("market.volatility must not be negative, got %v", c.Market.Volatility)
	}
	if c.Market.DaysToExpiry < 0 {
		return fmt.Errorf("market.days_to_expiry must not be negative, got %v", c.Market.DaysToExpiry)
	}
	if c.Chain.Step <= 0 {
		return fmt.Errorf("chain.step must be positive, got %v", c.Chain.Step)
	}
	if c.Chain.MaxRows <= 0 {
		return fmt.Errorf("chain.max_rows must be positive, got %d", c.Chain.MaxRows)
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "fxoption")
	v.SetDefault("version", "dev")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)
	v.SetDefault("http.allow_origins", []string{})

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.max_concurrent_streams", 1000)
	v.SetDefault("grpc.reflection", true)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/fxoption.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50.0)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("market.spot", 83.20)
	v.SetDefault("market.future", 83.50)
	v.SetDefault("market.volatility", 0.08)
	v.SetDefault("market.domestic_rate", 0.065)
	v.SetDefault("market.foreign_rate", 0.052)
	v.SetDefault("market.days_to_expiry", 30.0)

	v.SetDefault("chain.lower_offset", 2.0)
	v.SetDefault("chain.upper_offset", 3.0)
	v.SetDefault("chain.step", 0.25)
	v.SetDefault("chain.max_rows", 2000)
}
