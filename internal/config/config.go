package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Env      string         `mapstructure:"env"` // 环境: development, production
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Import   ImportConfig   `mapstructure:"import"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string  `mapstructure:"host"`
	Port           int     `mapstructure:"port"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"` // 0 表示不限流
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 秒
}

// ImportConfig 导入调度配置
type ImportConfig struct {
	PollIntervalMs     int                         `mapstructure:"poll_interval_ms"`     // 调度轮询间隔,毫秒
	GlobalConcurrency  int                         `mapstructure:"global_concurrency"`   // 全局并发任务上限
	TypeConcurrency    map[string]int              `mapstructure:"type_concurrency"`     // 各类型并发上限,缺省用全局值
	TaskTimeoutMinutes int                         `mapstructure:"task_timeout_minutes"` // 单任务执行上限
	Dependencies       map[string][]string         `mapstructure:"dependencies"`         // 类型 -> 前置类型
	Types              map[string]TypeImportConfig `mapstructure:"types"`                // 各类型批处理参数
}

// TypeImportConfig 单一导入类型的批处理参数
type TypeImportConfig struct {
	BatchSize   int `mapstructure:"batch_size"`  // 每批逻辑记录数
	Concurrency int `mapstructure:"concurrency"` // 导入内部并发批次数,<=1 为顺序
}

// PollInterval 调度轮询间隔
func (c ImportConfig) PollInterval() time.Duration {
	if c.PollIntervalMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// TaskTimeout 单任务执行上限
func (c ImportConfig) TaskTimeout() time.Duration {
	if c.TaskTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.TaskTimeoutMinutes) * time.Minute
}

// CapFor 某一导入类型的并发上限,未配置时回退到全局上限
func (c ImportConfig) CapFor(importType string) int {
	if cap, ok := c.TypeConcurrency[importType]; ok && cap > 0 {
		return cap
	}
	if c.GlobalConcurrency > 0 {
		return c.GlobalConcurrency
	}
	return 1
}

// TypeConfig 某一导入类型的批处理参数
func (c ImportConfig) TypeConfig(importType string) TypeImportConfig {
	if tc, ok := c.Types[importType]; ok {
		return tc
	}
	return TypeImportConfig{}
}

// ValidateDependencies 校验类型依赖配置无环
// 依赖图是静态配置,启动时校验一次即可,提交时无需再查环
func (c ImportConfig) ValidateDependencies() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)

	var visit func(t string, path []string) error
	visit = func(t string, path []string) error {
		switch color[t] {
		case gray:
			return fmt.Errorf("import dependency cycle: %s", strings.Join(append(path, t), " -> "))
		case black:
			return nil
		}
		color[t] = gray
		for _, dep := range c.Dependencies[t] {
			if err := visit(dep, append(path, t)); err != nil {
				return err
			}
		}
		color[t] = black
		return nil
	}

	for t := range c.Dependencies {
		if err := visit(t, nil); err != nil {
			return err
		}
	}
	return nil
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error
	Format string `mapstructure:"format"` // 日志格式: json, text
	Output string `mapstructure:"output"` // 输出位置: stdout, file, both
	File   string `mapstructure:"file"`   // 日志文件路径（output 含 file 时生效）
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"` // 采样比例,(0,1],0 按 1 处理
}

// Load 加载配置,支持配置文件和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果提供了配置文件路径,从文件加载
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		// 尝试从默认位置加载
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.erp-sub001")
		// 忽略配置文件不存在的错误,使用默认值
		_ = v.ReadInConfig()
	}

	// 支持环境变量
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Import.ValidateDependencies(); err != nil {
		return nil, fmt.Errorf("invalid import config: %w", err)
	}

	return &cfg, nil
}

// IsProduction 判断是否为生产环境
func IsProduction(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.Env == "production"
}

// Default 返回默认配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 环境变量
	env := v.GetString("env")
	if env == "" {
		env = os.Getenv("APP_ENV")
		if env == "" {
			env = "development"
		}
	}
	v.SetDefault("env", env)

	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 50)

	// 数据库默认配置
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "erp")
	v.SetDefault("database.sslmode", "disable")

	// 数据库连接池配置（根据环境设置默认值）
	if env == "production" {
		v.SetDefault("database.max_idle_conns", 20)
		v.SetDefault("database.max_open_conns", 200)
		v.SetDefault("database.conn_max_lifetime", 3600)
		v.SetDefault("database.conn_max_idle_time", 300)
	} else {
		v.SetDefault("database.max_idle_conns", 10)
		v.SetDefault("database.max_open_conns", 100)
		v.SetDefault("database.conn_max_lifetime", 3600)
		v.SetDefault("database.conn_max_idle_time", 600)
	}

	// 导入调度默认配置
	v.SetDefault("import.poll_interval_ms", 2000)
	v.SetDefault("import.global_concurrency", 4)
	v.SetDefault("import.task_timeout_minutes", 30)
	v.SetDefault("import.dependencies", map[string][]string{
		"material":       {"unit"},
		"bom":            {"material"},
		"purchase_order": {"material", "supplier"},
		"sale_order":     {"material"},
		"sale_outstock":  {"material"},
		"sub_req_order":  {"material", "supplier"},
	})
	v.SetDefault("import.types", map[string]map[string]int{
		"material":       {"batch_size": 500},
		"unit":           {"batch_size": 200},
		"supplier":       {"batch_size": 200, "concurrency": 10},
		"bom":            {"batch_size": 100},
		"purchase_order": {"batch_size": 100},
		"sale_order":     {"batch_size": 100},
		"sale_outstock":  {"batch_size": 200},
		"sub_req_order":  {"batch_size": 100, "concurrency": 10},
	})

	// CORS 默认配置
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.max_age", 86400)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/erp-sub001.log")

	// 链路追踪默认配置
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.sample_ratio", 1.0)
}
