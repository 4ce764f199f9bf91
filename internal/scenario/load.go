package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Format identifies a scenario file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatForPath picks the encoding from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported scenario format %q", filepath.Ext(path))
}

// Decode parses and validates a scenario from raw bytes.
func Decode(data []byte, format Format) (*Scenario, error) {
	var scn Scenario
	var err error
	switch format {
	case FormatJSON:
		err = sonic.Unmarshal(data, &scn)
	case FormatYAML:
		err = yaml.Unmarshal(data, &scn)
	case FormatTOML:
		err = toml.Unmarshal(data, &scn)
	default:
		return nil, fmt.Errorf("unsupported scenario format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s scenario: %w", format, err)
	}
	if err := scn.Validate(); err != nil {
		return nil, err
	}
	return &scn, nil
}

// Load reads and validates a scenario file, picking the codec from the
// extension.
func Load(path string) (*Scenario, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Decode(data, format)
}
