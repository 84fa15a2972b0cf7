package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level  string // debug|info|warn|error
	Format string // json|console
	File   string // optional rotating JSON log file
}

// New builds the process logger: one core for stdout and, when File is set,
// a second JSON core writing to a rotating file.
func New(o Options) (*zap.Logger, error) {
	return newLogger(o, os.Stdout)
}

func newLogger(o Options, stdout io.Writer) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if o.Level != "" {
		if err := level.Set(o.Level); err != nil {
			return nil, fmt.Errorf("log level %q: %w", o.Level, err)
		}
	}

	cores := []zapcore.Core{newConsoleCore(o.Format, stdout, level)}
	if o.File != "" {
		fc, err := newFileCore(o.File, level)
		if err != nil {
			return nil, err
		}
		cores = append(cores, fc)
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "time",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
}

func newConsoleCore(format string, w io.Writer, level zapcore.Level) zapcore.Core {
	var enc zapcore.Encoder
	if format == "console" {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	} else {
		enc = zapcore.NewJSONEncoder(jsonEncoderConfig())
	}
	return zapcore.NewCore(enc, zapcore.AddSync(w), level)
}

func newFileCore(path string, level zapcore.Level) (zapcore.Core, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     7, // days
		Compress:   true,
	})
	return zapcore.NewCore(zapcore.NewJSONEncoder(jsonEncoderConfig()), writer, level), nil
}
