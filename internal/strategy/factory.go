// Package strategy loads strategy definitions from JSON and YAML files.
package strategy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"optionforge/internal/backtest"
	"optionforge/internal/domain"
)

// Factory errors
var (
	ErrUnknownFormat     = errors.New("unknown strategy file format")
	ErrMissingDefinition = errors.New("strategy file has no legs")
)

// File formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// file is the on-disk shape. A file may also hold a bare definition.
type file struct {
	Name        string                     `json:"name" yaml:"name"`
	Description string                     `json:"description" yaml:"description"`
	Definition  *domain.StrategyDefinition `json:"definition" yaml:"definition"`
}

// LoadFile reads a strategy from path, picking the format by extension.
// Strategies without a name are named after the file.
func LoadFile(path string) (*domain.Strategy, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy file: %w", err)
	}

	st, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if st.Name == "" {
		st.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return st, nil
}

// Parse decodes and validates a strategy document.
func Parse(data []byte, format string) (*domain.Strategy, error) {
	var f file
	var bare domain.StrategyDefinition

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		if f.Definition == nil {
			if err := json.Unmarshal(data, &bare); err != nil {
				return nil, fmt.Errorf("parse json: %w", err)
			}
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if f.Definition == nil {
			if err := yaml.Unmarshal(data, &bare); err != nil {
				return nil, fmt.Errorf("parse yaml: %w", err)
			}
		}
	default:
		return nil, ErrUnknownFormat
	}

	def := f.Definition
	if def == nil {
		def = &bare
	}
	if len(def.Legs) == 0 {
		return nil, ErrMissingDefinition
	}
	def.UnderlyingTicker = strings.ToUpper(def.UnderlyingTicker)
	if err := backtest.Validate(*def); err != nil {
		return nil, err
	}

	return &domain.Strategy{
		Name:        f.Name,
		Description: f.Description,
		Definition:  *def,
	}, nil
}

func formatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Ext(path))
}
