package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"crmhub/pkg/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ServiceName 写入每条日志的 service 字段
const ServiceName = "crmhub"

var Logger *logrus.Logger

// Initialize 按配置创建全局日志
func Initialize(cfg *config.Config) error {
	l, err := New(cfg.Log, os.Stdout)
	if err != nil {
		return err
	}
	Logger = l
	return nil
}

// New 创建日志实例；配置了文件路径时同时写入 console 与轮转文件
func New(cfg config.LogConfig, console io.Writer) (*logrus.Logger, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch cfg.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out := console
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		out = io.MultiWriter(console, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}
	l.SetOutput(out)
	l.AddHook(serviceHook{})
	return l, nil
}

// GetLogger 获取日志实例，未初始化时返回 logrus 标准日志
func GetLogger() *logrus.Logger {
	if Logger == nil {
		return logrus.StandardLogger()
	}
	return Logger
}

// WithComponent 带 component 字段的日志条目
func WithComponent(name string) *logrus.Entry {
	return GetLogger().WithField("component", name)
}

type serviceHook struct{}

func (serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (serviceHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["service"]; !ok {
		e.Data["service"] = ServiceName
	}
	return nil
}
