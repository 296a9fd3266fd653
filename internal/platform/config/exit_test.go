package config_test

import (
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/louisbranch/shipwatch/internal/platform/config"
)

// TestExit_UsesUsageCode runs Exit in a subprocess because os.Exit cannot be
// intercepted in-process.
func TestExit_UsesUsageCode(t *testing.T) {
	if os.Getenv("TEST_EXIT_SUBPROCESS") == "1" {
		config.Exit(os.Stderr, "shipwatch", config.RequireShorter("fetch-timeout", 2, "budget", 1))
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExit_UsesUsageCode$")
	cmd.Env = append(os.Environ(), "TEST_EXIT_SUBPROCESS=1")

	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected *exec.ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != config.ExitCodeUsage {
		t.Fatalf("expected exit code %d, got %d", config.ExitCodeUsage, exitErr.ExitCode())
	}
	if !strings.Contains(string(out), "shipwatch: fetch-timeout must be shorter than budget") {
		t.Fatalf("unexpected stderr %q", string(out))
	}
}

func TestExitIgnoresNil(t *testing.T) {
	config.Exit(os.Stderr, "shipwatch", nil)
}

func TestExitCode(t *testing.T) {
	if got := config.ExitCode(nil); got != 0 {
		t.Fatalf("nil exit code = %d", got)
	}
	if got := config.ExitCode(config.RequireShorter("a", 2, "b", 1)); got != config.ExitCodeUsage {
		t.Fatalf("config exit code = %d", got)
	}
	if got := config.ExitCode(os.ErrPermission); got != 1 {
		t.Fatalf("other exit code = %d", got)
	}
}
