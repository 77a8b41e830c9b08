package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/conductor/internal/errors"
)

// decodeYAMLFile reads a YAML file into a JSON-tagged target by pivoting
// through JSON. The pivot lets types with custom JSON unmarshaling, like
// the openapi3 output schemas embedded in tool specs, decode from YAML
// input files.
func decodeYAMLFile(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFileNotFoundError(path)
		}
		return errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read %s", path), err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return errors.NewFileUnmarshalError(path, "YAML", err)
	}

	pivot, err := json.Marshal(raw)
	if err != nil {
		return errors.NewFileUnmarshalError(path, "YAML", err)
	}
	if err := json.Unmarshal(pivot, target); err != nil {
		return errors.NewFileUnmarshalError(path, "YAML", err)
	}
	return nil
}

// readJSONFile reads a JSON document produced by an earlier command.
func readJSONFile(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFileNotFoundError(path)
		}
		return errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read %s", path), err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return errors.NewFileUnmarshalError(path, "JSON", err)
	}
	return nil
}

// writeJSON writes an indented JSON document to the path, or to stdout
// when the path is empty or "-".
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize output: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}
