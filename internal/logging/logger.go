// Package logging builds the zap loggers used by the todo commands.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects where logs go and how much is written.
type Options struct {
	// File, when set, receives JSON logs through a rotating writer
	// instead of stderr.
	File       string
	Verbose    bool
	MaxSizeMB  int
	MaxBackups int
}

// New returns a production logger. Callers must Sync it before exit.
func New(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Verbose {
		level.SetLevel(zapcore.DebugLevel)
	}

	if opts.File == "" {
		config := zap.NewProductionConfig()
		config.Level = level
		logger, err := config.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		return logger, nil
	}

	return zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(rotatingWriter(opts)),
		level,
	)), nil
}

func rotatingWriter(opts Options) *lumberjack.Logger {
	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   true,
	}
}
