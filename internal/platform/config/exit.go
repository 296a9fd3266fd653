package config

import (
	"fmt"
	"io"
	"os"

	apperrors "github.com/louisbranch/shipwatch/internal/platform/errors"
)

// ExitCodeUsage is returned for configuration and usage mistakes.
const ExitCodeUsage = 2

// ExitCode maps a run error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case apperrors.HasCode(err, apperrors.CodeConfigInvalid):
		return ExitCodeUsage
	default:
		return 1
	}
}

// Exit writes err to w and exits with ExitCode(err).
func Exit(w io.Writer, service string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s: %v\n", service, err)
	os.Exit(ExitCode(err))
}
