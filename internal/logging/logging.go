// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap loggers used across the router.
package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Environments accepted by New.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

var (
	mu     sync.RWMutex
	global *zap.Logger
)

// New builds a logger. Production emits JSON; anything else emits the
// colored console format. An unparseable level falls back to info.
func New(level, env string) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(env, EnvProduction) {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		zl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(zl)

	return cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

// Init builds a logger with New and installs it as the process default.
func Init(level, env string) error {
	l, err := New(level, env)
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// Set replaces the process default logger.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	global = l
}

// Get returns the process default logger, or a no-op logger before Init.
func Get() *zap.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Named returns a child of l tagged with a component name. A nil l uses Get.
func Named(l *zap.Logger, component string) *zap.Logger {
	if l == nil {
		l = Get()
	}
	return l.With(zap.String("component", component))
}

// Sync flushes the process default logger.
func Sync() error {
	return Get().Sync()
}
