package authflow

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger used across the package. Args are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named loggers.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// LogConfig selects the zap backend.
type LogConfig struct {
	// Env is "dev" (console) or "prod" (JSON).
	Env     string
	Level   string
	Service string
}

type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger adapts a zap logger.
func NewZapLogger(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapLogger{s: l.Sugar()}
}

// NewLogger builds a zap backed logger from cfg.
func NewLogger(cfg LogConfig) (Logger, error) {
	l, err := buildZap(cfg)
	if err != nil {
		return nil, err
	}
	return NewZapLogger(l), nil
}

// NopLogger discards everything.
func NopLogger() Logger {
	return NewZapLogger(zap.NewNop())
}

func (l *zapLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l *zapLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l *zapLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l *zapLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }

// GetLogger returns a child logger scoped by name.
func (l *zapLogger) GetLogger(name string) Logger {
	return &zapLogger{s: l.s.Named(name)}
}

// ResolveLogger picks a named logger from provider, then logger, then a
// warn level default.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) Logger {
	if provider != nil {
		if l := provider.GetLogger(name); l != nil {
			return l
		}
	}
	if logger != nil {
		return logger
	}
	return defaultLogger(name)
}

func defaultLogger(name string) Logger {
	l, err := buildZap(LogConfig{Env: "prod", Level: "warn"})
	if err != nil {
		return NopLogger()
	}
	return &zapLogger{s: l.Sugar().Named(name)}
}

func buildZap(cfg LogConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if strings.EqualFold(cfg.Env, "prod") {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := zcfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	if cfg.Service != "" {
		l = l.With(zap.String("service", cfg.Service))
	}
	return l, nil
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}
