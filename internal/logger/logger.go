package logger

import (
	"os"
	"strings"

	"github.com/samvad-hq/fileio-go/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging surface shared by the app packages.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

// NopLogger discards everything.
type NopLogger struct{}

func (*NopLogger) InfoObj(string, string, interface{})  {}
func (*NopLogger) DebugObj(string, string, interface{}) {}
func (*NopLogger) WarnObj(string, string, interface{})  {}
func (*NopLogger) ErrorObj(string, string, interface{}) {}

// Zap adapts a SugaredLogger to Logger.
type Zap struct {
	s *zap.SugaredLogger
}

// NewZap wraps s; a nil s logs nothing.
func NewZap(s *zap.SugaredLogger) *Zap {
	if s == nil {
		s = zap.NewNop().Sugar()
	}
	return &Zap{s: s}
}

func (z *Zap) InfoObj(msg, key string, obj interface{}) {
	z.s.Desugar().Info(msg, zap.Any(key, obj))
}

func (z *Zap) DebugObj(msg, key string, obj interface{}) {
	z.s.Desugar().Debug(msg, zap.Any(key, obj))
}

func (z *Zap) WarnObj(msg, key string, obj interface{}) {
	z.s.Desugar().Warn(msg, zap.Any(key, obj))
}

func (z *Zap) ErrorObj(msg, key string, obj interface{}) {
	z.s.Desugar().Error(msg, zap.Any(key, obj))
}

// Sugar exposes the underlying logger.
func (z *Zap) Sugar() *zap.SugaredLogger { return z.s }

// Package-level logger to be used across packages after Init.
var S *zap.SugaredLogger

// Init initializes a zap SugaredLogger using settings from config. Logs go to
// stderr so that stdout stays reserved for command output.
func Init(cfg *config.Config) (*Zap, error) {
	level := "info"
	if cfg != nil {
		level = cfg.LogLevel
	}
	sugar := New(level, zapcore.Lock(os.Stderr))
	if cfg != nil {
		sugar = sugar.With("app", cfg.AppName, "env", cfg.Env)
	}
	S = sugar
	return NewZap(sugar), nil
}

// New builds a JSON SugaredLogger writing to w at the named level.
func New(level string, w zapcore.WriteSyncer) *zap.SugaredLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(w),
		parseLevel(level),
	)

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).Sugar()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Close flushes any buffered loggers.
func Close() error {
	if S == nil {
		return nil
	}
	return S.Sync()
}

// Minimal object logging helpers -------------------------------------------------
// These log the given object as a structured field named `key`.
func InfoObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Info(msg, zap.Any(key, obj))
}

func DebugObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Debug(msg, zap.Any(key, obj))
}

func WarnObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Warn(msg, zap.Any(key, obj))
}

func ErrorObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Error(msg, zap.Any(key, obj))
}
