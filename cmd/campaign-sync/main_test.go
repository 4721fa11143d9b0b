package main

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("CS_TEST_STR", "value")

	if got := getEnv("CS_TEST_STR", "fallback"); got != "value" {
		t.Errorf("getEnv = %q, want value", got)
	}
	if got := getEnv("CS_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("getEnv = %q, want fallback", got)
	}
}

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("CS_TEST_DUR", "250ms")
	t.Setenv("CS_TEST_DUR_BAD", "soon")

	if got := getDurationEnv("CS_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Errorf("getDurationEnv = %v, want 250ms", got)
	}
	if got := getDurationEnv("CS_TEST_DUR_BAD", time.Second); got != time.Second {
		t.Errorf("getDurationEnv = %v, want fallback on parse error", got)
	}
	if got := getDurationEnv("CS_TEST_DUR_MISSING", time.Second); got != time.Second {
		t.Errorf("getDurationEnv = %v, want fallback", got)
	}
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("CS_TEST_INT", "7")
	t.Setenv("CS_TEST_INT_BAD", "seven")

	if got := getIntEnv("CS_TEST_INT", 3); got != 7 {
		t.Errorf("getIntEnv = %d, want 7", got)
	}
	if got := getIntEnv("CS_TEST_INT_BAD", 3); got != 3 {
		t.Errorf("getIntEnv = %d, want fallback on parse error", got)
	}
}

func TestGetBoolEnv(t *testing.T) {
	t.Setenv("CS_TEST_BOOL", "true")

	if got := getBoolEnv("CS_TEST_BOOL", false); !got {
		t.Error("getBoolEnv = false, want true")
	}
	if got := getBoolEnv("CS_TEST_BOOL_MISSING", true); !got {
		t.Error("getBoolEnv = false, want fallback true")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadConfig()

	if cfg.maxRetries != 3 {
		t.Errorf("maxRetries = %d, want 3", cfg.maxRetries)
	}
	if cfg.pageLimit != 50 {
		t.Errorf("pageLimit = %d, want 50", cfg.pageLimit)
	}
	if cfg.dbPath != "campaign-sync.db" {
		t.Errorf("dbPath = %q, want campaign-sync.db", cfg.dbPath)
	}
}
