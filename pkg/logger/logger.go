package logger

import (
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"signalflow/conf"
)

// 全局日志，zap + lumberjack 滚动切割

var (
	lg    *zap.Logger
	sugar *zap.SugaredLogger
)

func init() {
	// 未调用Init前使用控制台输出，保证测试里直接可用
	lg, _ = zap.NewDevelopment(zap.AddCallerSkip(1))
	sugar = lg.Sugar()
}

// Init 根据配置初始化全局logger
func Init(cfg conf.LogConfig) {
	encCfg := zap.NewProductionEncoderConfig()
	if cfg.TimeFormat != "" {
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(cfg.TimeFormat)
	} else {
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	encoder := zapcore.NewJSONEncoder(encCfg)

	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	var cores []zapcore.Core
	if cfg.FileName != "" {
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FileName,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  cfg.LocalTime,
		})
		cores = append(cores, zapcore.NewCore(encoder, w, level))
	}
	if cfg.Console || cfg.FileName == "" {
		consoleEnc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(consoleEnc, zapcore.AddSync(os.Stdout), level))
	}

	lg = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	sugar = lg.Sugar()
}

// L 返回原始zap logger，结构化字段用
func L() *zap.Logger { return lg }

func Sync() { _ = lg.Sync() }

func Debug(args ...interface{}) { sugar.Debug(args...) }
func Info(args ...interface{})  { sugar.Info(args...) }
func Warn(args ...interface{})  { sugar.Warn(args...) }
func Error(args ...interface{}) { sugar.Error(args...) }
func Fatal(args ...interface{}) { sugar.Fatal(args...) }

func Debugf(format string, args ...interface{}) { sugar.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { sugar.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { sugar.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { sugar.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { sugar.Fatalf(format, args...) }
