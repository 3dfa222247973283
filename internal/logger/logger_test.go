package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewDefaultLevels(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	prod, err := New("production")
	if err != nil {
		t.Fatalf("production logger: %v", err)
	}
	if prod.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("production logger must not emit debug by default")
	}
	if !prod.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("production logger must emit info")
	}

	dev, err := New("development")
	if err != nil {
		t.Fatalf("development logger: %v", err)
	}
	if !dev.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("development logger must emit debug")
	}
}

func TestNewLogLevelOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	log, err := New("production")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("LOG_LEVEL=debug must lower the production level")
	}

	t.Setenv("LOG_LEVEL", "warn")
	log, err = New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("LOG_LEVEL=warn must raise the development level")
	}
}

func TestNewIgnoresInvalidLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "chatty")
	log, err := New("production")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("an unknown LOG_LEVEL must keep the default level")
	}
}
