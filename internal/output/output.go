// Package output writes run records to disk.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tabular is implemented by records that can be flattened to rows.
type Tabular interface {
	Header() []string
	Rows() [][]string
}

// Save writes record to path in the format implied by its extension:
// .json, .yaml/.yml or .csv.
func Save(record any, path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return SaveJSON(record, path)
	case ".yaml", ".yml":
		return SaveYAML(record, path)
	case ".csv":
		t, ok := record.(Tabular)
		if !ok {
			return fmt.Errorf("record of type %T cannot be written as CSV", record)
		}
		return SaveCSV(t, path)
	default:
		return fmt.Errorf("unsupported output format %q (use .json, .yaml or .csv)", ext)
	}
}

// SaveJSON writes an indented JSON export of record to path.
func SaveJSON(record any, path string) error {
	content, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return os.WriteFile(path, append(content, '\n'), 0644)
}

// WriteJSON writes an indented JSON export of record to w.
func WriteJSON(w io.Writer, record any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}

// SaveYAML writes a YAML export of record to path.
func SaveYAML(record any, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

// SaveCSV writes a header row followed by every data row.
func SaveCSV(t Tabular, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(t.Header()); err != nil {
		return err
	}
	if err := writer.WriteAll(t.Rows()); err != nil {
		return err
	}
	return writer.Error()
}
