package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	apperrors "github.com/louisbranch/shipwatch/internal/platform/errors"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return apperrors.Wrap(apperrors.CodeConfigInvalid, "parse env", err)
	}
	return nil
}

// RequireShorter reports a configuration error unless inner is positive and
// strictly shorter than outer.
func RequireShorter(innerName string, inner time.Duration, outerName string, outer time.Duration) error {
	if inner <= 0 {
		return apperrors.WithMetadata(apperrors.CodeConfigInvalid, fmt.Sprintf("%s must be positive", innerName), map[string]string{innerName: inner.String()})
	}
	if inner >= outer {
		return apperrors.WithMetadata(apperrors.CodeConfigInvalid, fmt.Sprintf("%s must be shorter than %s", innerName, outerName), map[string]string{
			innerName: inner.String(),
			outerName: outer.String(),
		})
	}
	return nil
}
