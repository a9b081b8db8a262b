package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fyerfyer/tmx-splitter/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = logrus.New()

// 初始化日志配置
func init() {
	// 进度日志输出到标准错误，标准输出留给命令结果
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	// 根据环境变量设置日志级别
	if os.Getenv("DEBUG") == "true" {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// Setup 按配置设置日志级别、格式和输出
// 返回的函数用于关闭日志文件
func Setup(cfg config.LogConfig) (func() error, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return func() error { return nil }, nil
	}

	// 日志文件按大小轮转
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))

	return func() error {
		log.SetOutput(os.Stderr)
		return rotator.Close()
	}, nil
}

// GetLogger 返回全局日志记录器
func GetLogger() *logrus.Logger {
	return log
}

// 常用日志字段
const (
	FieldRunID     = "run_id"    // 运行ID
	FieldStage     = "stage"     // 处理阶段
	FieldInput     = "input"     // 输入文件
	FieldPart      = "part"      // 分片序号
	FieldPath      = "path"      // 文件路径
	FieldBytes     = "bytes"     // 字节数
	FieldRecords   = "records"   // 记录数
	FieldEncoding  = "encoding"  // 编码
	FieldThreshold = "threshold" // 分割阈值
	FieldDuration  = "duration"  // 耗时
	FieldError     = "error"     // 错误信息
)
