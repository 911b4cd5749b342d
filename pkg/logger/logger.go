// Package logger owns the zap logger shared by gatewayenv commands.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global *zap.Logger

// Init replaces the shared logger. env "dev" selects a colored console
// encoder, anything else JSON. An unparsable level keeps the encoder's
// default. Output always goes to stderr; stdout carries command results.
func Init(service, env, level string) {
	cfg := zap.NewProductionConfig()
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	built, err := cfg.Build(zap.AddCaller())
	if err != nil {
		panic("logger: " + err.Error())
	}
	global = built.With(zap.String("service", service))
	global.Debug("logger ready", zap.String("env", env), zap.String("level", level))
}

// L returns the shared logger, initializing a dev logger on first use.
func L() *zap.Logger {
	if global == nil {
		Init("gatewayenv", "dev", "info")
	}
	return global
}

// Sync flushes buffered entries. Call it before exit.
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}
