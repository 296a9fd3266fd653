package shipwatchctl

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	apperrors "github.com/louisbranch/shipwatch/internal/platform/errors"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

func validateOutput(format string) error {
	switch format {
	case outputJSON, outputYAML:
		return nil
	default:
		return apperrors.WithMetadata(apperrors.CodeConfigInvalid, "unsupported output format", map[string]string{"output": format})
	}
}

// writeOutput renders value as indented JSON or as YAML. YAML goes through
// the JSON encoding first so both formats share field names.
func writeOutput(w io.Writer, format string, value any) error {
	switch format {
	case outputYAML:
		payload, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		var generic any
		if err := yaml.Unmarshal(payload, &generic); err != nil {
			return fmt.Errorf("convert output: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("write yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(value); err != nil {
			return fmt.Errorf("write json: %w", err)
		}
		return nil
	}
}
