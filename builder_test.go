package otpengine

import (
	"strings"
	"testing"
)

func TestBuildRequiresDependencies(t *testing.T) {
	_, rdb := newTestRedis(t)

	if _, err := New().Build(); err == nil || !strings.Contains(err.Error(), "redis") {
		t.Errorf("missing redis error = %v", err)
	}

	if _, err := New().WithRedis(rdb).Build(); err == nil || !strings.Contains(err.Error(), "notifier") {
		t.Errorf("missing notifier error = %v", err)
	}

	_, err := New().
		WithRedis(rdb).
		WithNotifier(&captureNotifier{}).
		Build()
	if err == nil || !strings.Contains(err.Error(), "user provider") {
		t.Errorf("missing user provider error = %v", err)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	_, rdb := newTestRedis(t)

	cfg := DefaultConfig()
	cfg.Challenge.MaxAttempts = 0

	_, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithNotifier(&captureNotifier{}).
		WithUserProvider(newMemoryUserProvider()).
		Build()
	if err == nil {
		t.Error("expected config validation error")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)

	b := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithNotifier(&captureNotifier{}).
		WithUserProvider(newMemoryUserProvider())

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := b.Build(); err == nil {
		t.Error("second build succeeded")
	}
}

func TestMetricsToggle(t *testing.T) {
	_, rdb := newTestRedis(t)

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithNotifier(&captureNotifier{}).
		WithUserProvider(newMemoryUserProvider()).
		WithMetricsEnabled(false).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if engine.metrics.Enabled() {
		t.Error("metrics enabled despite toggle")
	}
}
