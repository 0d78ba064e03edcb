// Package logging builds zap loggers for task queues and adapts them to
// core.Logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultMaxSize    = 100 // megabytes
	DefaultMaxAge     = 30  // days
	DefaultMaxBackups = 10
	DefaultCompress   = true
)

// Config holds logger configuration
type Config struct {
	Level         zapcore.Level
	ConsoleOutput bool
	Console       io.Writer
	JSONFormat    bool // use JSON format for console output
	Filename      string
	MaxSize       int  // megabytes
	MaxAge        int  // days
	MaxBackups    int  // number of backups to keep
	Compress      bool // compress rotated files
}

// Option is a function that configures the logger
type Option func(*Config)

// ParseLevel maps a level name to a zap level. Unknown names yield info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// WithLevel sets the logging level by name
func WithLevel(level string) Option {
	return func(c *Config) { c.Level = ParseLevel(level) }
}

// WithConsoleOutput enables/disables console output
func WithConsoleOutput(enabled bool) Option {
	return func(c *Config) { c.ConsoleOutput = enabled }
}

// WithConsoleWriter redirects console output, stdout by default
func WithConsoleWriter(w io.Writer) Option {
	return func(c *Config) { c.Console = w }
}

// WithJSONFormat switches console output to JSON
func WithJSONFormat(enabled bool) Option {
	return func(c *Config) { c.JSONFormat = enabled }
}

// WithFile enables rotated file output. An empty filename disables it.
func WithFile(filename string) Option {
	return func(c *Config) { c.Filename = filename }
}

// WithRotationConfig sets the log rotation configuration
func WithRotationConfig(maxSize, maxAge, maxBackups int, compress bool) Option {
	return func(c *Config) {
		c.MaxSize = maxSize
		c.MaxAge = maxAge
		c.MaxBackups = maxBackups
		c.Compress = compress
	}
}

// New builds a zap logger from the options. Console output is on by default;
// file output is on when a filename is set.
func New(opts ...Option) (*zap.Logger, error) {
	config := &Config{
		Level:         zapcore.InfoLevel,
		ConsoleOutput: true,
		Console:       os.Stdout,
		MaxSize:       DefaultMaxSize,
		MaxAge:        DefaultMaxAge,
		MaxBackups:    DefaultMaxBackups,
		Compress:      DefaultCompress,
	}
	for _, opt := range opts {
		opt(config)
	}

	var cores []zapcore.Core

	if config.ConsoleOutput {
		var consoleEncoder zapcore.Encoder
		if config.JSONFormat {
			jsonConfig := zap.NewProductionEncoderConfig()
			jsonConfig.EncodeTime = zapcore.ISO8601TimeEncoder
			jsonConfig.StacktraceKey = ""
			consoleEncoder = zapcore.NewJSONEncoder(jsonConfig)
		} else {
			consoleConfig := zap.NewDevelopmentEncoderConfig()
			consoleConfig.EncodeTime = zapcore.RFC3339TimeEncoder
			consoleConfig.EncodeLevel = zapcore.CapitalLevelEncoder
			consoleConfig.EncodeCaller = zapcore.ShortCallerEncoder
			consoleEncoder = zapcore.NewConsoleEncoder(consoleConfig)
		}
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(config.Console), config.Level))
	}

	if config.Filename != "" {
		if err := os.MkdirAll(filepath.Dir(config.Filename), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		fileEncoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
			TimeKey:      "ts",
			LevelKey:     "level",
			NameKey:      "logger",
			CallerKey:    "caller",
			MessageKey:   "msg",
			EncodeLevel:  zapcore.LowercaseLevelEncoder,
			EncodeTime:   zapcore.ISO8601TimeEncoder,
			EncodeCaller: zapcore.ShortCallerEncoder,
		})
		cores = append(cores, zapcore.NewCore(
			fileEncoder,
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   config.Filename,
				MaxSize:    config.MaxSize,
				MaxAge:     config.MaxAge,
				MaxBackups: config.MaxBackups,
				Compress:   config.Compress,
			}),
			config.Level,
		))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("no output configured for logger")
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}
