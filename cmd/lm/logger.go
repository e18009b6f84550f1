package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// verbose enables info-level logging on stderr.
var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log processing details to stderr")
}

// newLogger builds the CLI logger. Warnings and errors always show; info
// only with --verbose. Logs go to stderr so JSON output stays parseable.
func newLogger() *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
