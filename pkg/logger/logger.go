package logger

import (
	"io"
	"os"
	"path/filepath"

	"vst-portal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 未初始化时为空日志，测试中直接调用各包不会空指针
var log = zap.NewNop()

// InitLogger 按配置创建 JSON 日志，写入轮转文件，可选同时输出到终端
func InitLogger(cfg config.LogConfig) *zap.Logger {
	if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0o755); err != nil {
		panic("无法创建日志目录: " + err.Error())
	}

	// 无法识别的级别按 info 处理
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var out io.Writer = &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // 天
		Compress:   cfg.Compress,
	}
	if cfg.Console {
		out = io.MultiWriter(out, os.Stdout)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder

	log = zap.New(
		zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(out), level),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	).With(zap.String("service", "vst-portal"))
	zap.ReplaceGlobals(log)

	return log
}

// Debug 记录调试级别日志
func Debug(msg string, fields ...zap.Field) { log.Debug(msg, fields...) }

// Info 记录信息级别日志
func Info(msg string, fields ...zap.Field) { log.Info(msg, fields...) }

// Warn 记录警告级别日志
func Warn(msg string, fields ...zap.Field) { log.Warn(msg, fields...) }

// Error 记录错误级别日志
func Error(msg string, fields ...zap.Field) { log.Error(msg, fields...) }
