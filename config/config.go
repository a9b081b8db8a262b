package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix 环境变量前缀，例如TMXSPLIT_SPLIT_THRESHOLD
	EnvPrefix = "TMXSPLIT"

	// DefaultConfigName 未指定配置文件时在当前目录查找的文件名
	DefaultConfigName = "tmxsplit"
)

// Config 应用程序配置结构体
type Config struct {
	Split SplitConfig `mapstructure:"split"`
	Log   LogConfig   `mapstructure:"log"`
}

// SplitConfig 分割配置
type SplitConfig struct {
	Threshold        string `mapstructure:"threshold" validate:"required"`          // 分割阈值，支持KB/MB/GB/TB
	OutputDir        string `mapstructure:"output_dir"`                             // 输出目录，为空时使用输入文件所在目录
	MaxEnvelopeBytes int64  `mapstructure:"max_envelope_bytes" validate:"gte=4096"` // head/tail查找上限
	Report           string `mapstructure:"report"`                                 // 运行报告路径（YAML）
	Clean            bool   `mapstructure:"clean"`                                  // 分割前删除旧的分片
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"` // 日志级别
	Format     string `mapstructure:"format" validate:"oneof=text json"`            // 日志格式
	File       string `mapstructure:"file"`                                         // 日志文件，为空时只输出到stderr
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`                 // 单个日志文件大小上限
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`                 // 保留的旧日志数量
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`                // 旧日志保留天数
	Compress   bool   `mapstructure:"compress"`                                     // 是否压缩旧日志
}

// flagKeys 命令行参数到配置项的映射
var flagKeys = map[string]string{
	"threshold":          "split.threshold",
	"output-dir":         "split.output_dir",
	"max-envelope-bytes": "split.max_envelope_bytes",
	"report":             "split.report",
	"clean":              "split.clean",
	"log-level":          "log.level",
	"log-format":         "log.format",
	"log-file":           "log.file",
}

// Load 从配置文件、.env、环境变量和命令行参数加载配置
// 优先级：命令行 > 环境变量 > 配置文件 > 默认值
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	// .env不覆盖已经存在的环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// 显式指定的配置文件必须存在
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 支持环境变量覆盖
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 分割默认配置
	v.SetDefault("split.threshold", "50MB")
	v.SetDefault("split.output_dir", "")
	v.SetDefault("split.max_envelope_bytes", 16<<20)
	v.SetDefault("split.report", "")
	v.SetDefault("split.clean", false)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", false)
}
