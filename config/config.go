package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"db"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Log          LogConfig          `mapstructure:"log"`
	Availability AvailabilityConfig `mapstructure:"availability"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port      int             `mapstructure:"port"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	// MaxICSBytes ICS 导入请求体上限（字节）
	MaxICSBytes int64 `mapstructure:"max_ics_bytes"`
}

// RateLimitConfig 重算接口限流配置（按用户 + 路由的滑动窗口）
type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
// 会话时区固定为 UTC：引擎只处理已解析好的 UTC 时刻
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig Redis 配置（用于跨实例的重算锁）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AvailabilityConfig 群组空闲时间计算配置
type AvailabilityConfig struct {
	// MaxCombinations 单次子群搜索允许求交的组合总数上限
	MaxCombinations int `mapstructure:"max_combinations"`
	// SearchWorkers 同一规模下并行求交的 worker 数
	SearchWorkers int `mapstructure:"search_workers"`
	// RecalcTimeout 单次重算（含事务）的超时时间
	RecalcTimeout time.Duration `mapstructure:"recalc_timeout"`
	// FanoutConcurrency 用户日历变更后并行重算群组的并发度
	FanoutConcurrency int `mapstructure:"fanout_concurrency"`
	// LockTTL 分布式重算锁的过期时间
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("GROUPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.rate_limit.limit", 30)
	v.SetDefault("server.rate_limit.window", "1m")
	v.SetDefault("server.max_ics_bytes", 5*1024*1024)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "groupsync")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("availability.max_combinations", 20000)
	v.SetDefault("availability.search_workers", 4)
	v.SetDefault("availability.recalc_timeout", "30s")
	v.SetDefault("availability.fanout_concurrency", 4)
	v.SetDefault("availability.lock_ttl", "30s")
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Server.RateLimit.Limit <= 0 || c.Server.RateLimit.Window <= 0 {
		return fmt.Errorf("配置校验失败: server.rate_limit 必须大于 0")
	}
	if c.Server.MaxICSBytes <= 0 {
		return fmt.Errorf("配置校验失败: server.max_ics_bytes 必须大于 0")
	}
	a := c.Availability
	if a.MaxCombinations <= 0 {
		return fmt.Errorf("配置校验失败: availability.max_combinations 必须大于 0")
	}
	if a.SearchWorkers <= 0 || a.FanoutConcurrency <= 0 {
		return fmt.Errorf("配置校验失败: availability 并发度必须大于 0")
	}
	if a.RecalcTimeout <= 0 || a.LockTTL <= 0 {
		return fmt.Errorf("配置校验失败: availability 超时时间必须大于 0")
	}
	return nil
}
