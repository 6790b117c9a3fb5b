package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestGetConfigPath verifies the HEARTHVIEW_CONFIG override.
func TestGetConfigPath(t *testing.T) {
	t.Setenv("HEARTHVIEW_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("HEARTHVIEW_CONFIG", "/etc/hearthview/config.yaml")
	if got := getConfigPath(); got != "/etc/hearthview/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env override", got)
	}
}

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("HEARTHVIEW_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestRun_MissingControllerSettings verifies run fails validation when the
// controller connection is not configured.
func TestRun_MissingControllerSettings(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
controller:
  base_url: ""
  token: ""

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("HEARTHVIEW_CONFIG", configPath)
	// Make sure ambient credentials don't leak into the test.
	t.Setenv("HEARTHVIEW_CONTROLLER_URL", "")
	t.Setenv("HEARTHVIEW_CONTROLLER_TOKEN", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without controller settings")
	}
	if !strings.Contains(err.Error(), "validating config") {
		t.Errorf("unexpected error: %v", err)
	}
}
