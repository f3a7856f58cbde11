package layout

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/types"
)

// Mapping is the per-game index file. Backups holds the chain in creation
// order, oldest first.
type Mapping struct {
	Name    string         `yaml:"name"`
	Backups []types.Backup `yaml:"backups,omitempty"`
}

func loadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid backup index %s: %w", path, err)
	}
	return &m, nil
}

// save writes the index atomically using a temp file and rename.
func (m *Mapping) save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal backup index: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
