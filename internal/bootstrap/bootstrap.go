// Package bootstrap loads an optional YAML file describing the initial
// backend pool, so an operator can check a backend list into version
// control instead of inlining it into LINGUALINK_BACKENDS.
package bootstrap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/config"
)

type document struct {
	Backends []config.BackendConfig `yaml:"backends"`
}

// LoadBackends reads a bootstrap YAML file and returns its backend list. A
// missing file is not an error — bootstrap is optional, and the caller is
// expected to fall back to config.Config's own backend fields.
func LoadBackends(path string) ([]config.BackendConfig, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bootstrap: reading %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("bootstrap: parsing %s: %w", path, err)
	}
	return doc.Backends, nil
}
