// Package common provides shared constants, types, and utilities
// used across the VPN Client application.
package common

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// LogConfig holds configuration options for the logger.
type LogConfig struct {
	Level      LogLevel
	EnableFile bool
	// MaxFileSizeMB is the size in megabytes before the log file is rotated.
	MaxFileSizeMB int
	// MaxBackups is the number of rotated files to keep.
	MaxBackups int
}

var (
	loggerMu      sync.RWMutex
	sugaredLogger *zap.SugaredLogger
	atomicLevel   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

const (
	defaultMaxFileSizeMB = 5
	defaultMaxBackups    = 5
)

// InitLogger initializes the application logger.
// Should be called early in application startup. When file logging is
// enabled, log files are written to the data directory and rotated by size.
func InitLogger(config LogConfig) error {
	atomicLevel.SetLevel(config.Level.zapLevel())

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), atomicLevel),
	}

	if config.EnableFile {
		dataDir, err := GetDataDir()
		if err != nil {
			return err
		}

		maxSize := config.MaxFileSizeMB
		if maxSize <= 0 {
			maxSize = defaultMaxFileSizeMB
		}
		maxBackups := config.MaxBackups
		if maxBackups <= 0 {
			maxBackups = defaultMaxBackups
		}

		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(dataDir, LogFileName),
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), atomicLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...))

	loggerMu.Lock()
	sugaredLogger = logger.Sugar()
	loggerMu.Unlock()

	return nil
}

// SetLogLevel changes the minimum log level at runtime.
func SetLogLevel(level LogLevel) {
	atomicLevel.SetLevel(level.zapLevel())
}

// CloseLogger flushes any buffered log entries.
func CloseLogger() {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if sugaredLogger != nil {
		_ = sugaredLogger.Sync()
	}
}

func logger() *zap.SugaredLogger {
	loggerMu.RLock()
	l := sugaredLogger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}

	// Fall back to a console-only logger when InitLogger was never called,
	// so early log calls are not silently dropped.
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if sugaredLogger == nil {
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stdout), atomicLevel)
		sugaredLogger = zap.New(core).Sugar()
	}
	return sugaredLogger
}

// LogDebug logs a debug message using the application logger.
func LogDebug(format string, args ...interface{}) {
	logger().Debugf(format, args...)
}

// LogInfo logs an informational message using the application logger.
func LogInfo(format string, args ...interface{}) {
	logger().Infof(format, args...)
}

// LogWarn logs a warning message using the application logger.
func LogWarn(format string, args ...interface{}) {
	logger().Warnf(format, args...)
}

// LogError logs an error message using the application logger.
func LogError(format string, args ...interface{}) {
	logger().Errorf(format, args...)
}
