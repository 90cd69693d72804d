package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

// Initialize инициализирует глобальный логгер
func Initialize(level string) error {
	l, err := New(level)
	if err != nil {
		return err
	}
	Logger = l
	return nil
}

// New собирает логгер для заданного уровня, не трогая глобальный
func New(level string) (*zap.Logger, error) {
	var config zap.Config

	switch level {
	case "debug":
		config = zap.NewDevelopmentConfig()
	default:
		lvl, err := parseLevel(level)
		if err != nil {
			return nil, err
		}
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	// Настраиваем формат времени
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return config.Build()
}

// Named возвращает дочерний логгер компонента, либо no-op логгер до инициализации
func Named(name string) *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger.Named(name)
}

// parseLevel конвертирует строку в zapcore.Level
func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %q", level)
	}
}

// Cleanup корректно закрывает логгер
func Cleanup() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}
