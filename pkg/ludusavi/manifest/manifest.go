package manifest

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Manifest is the full table of known games, keyed by name.
type Manifest map[string]Game

// Parse decodes a manifest from its YAML wire format.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if m == nil {
		m = Manifest{}
	}
	return m, nil
}

// Load reads and parses a manifest file.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(data)
}

// Names returns all game names in sorted order.
func (m Manifest) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SteamIDToName maps Steam app ids to game names for id-based selection.
func (m Manifest) SteamIDToName() map[uint32]string {
	out := make(map[uint32]string)
	for name, game := range m {
		if game.Steam != nil && game.Steam.ID != 0 {
			out[game.Steam.ID] = name
		}
	}
	return out
}

// GogIDToName maps GOG product ids to game names.
func (m Manifest) GogIDToName() map[uint64]string {
	out := make(map[uint64]string)
	for name, game := range m {
		if game.Gog != nil && game.Gog.ID != 0 {
			out[game.Gog.ID] = name
		}
	}
	return out
}

// CustomGame is a user-declared game definition from the configuration. Its
// pattern lists take precedence over a manifest entry of the same name; the
// Ignore flag instead suppresses the game entirely.
type CustomGame struct {
	Name     string   `yaml:"name" mapstructure:"name"`
	Files    []string `yaml:"files,omitempty" mapstructure:"files"`
	Registry []string `yaml:"registry,omitempty" mapstructure:"registry"`
	Ignore   bool     `yaml:"ignore,omitempty" mapstructure:"ignore"`
}

// AddCustomGame merges one custom game into the manifest. The custom pattern
// lists replace any existing lists wholesale, but the prior entry's store
// metadata and install directory hints are preserved so that id lookups and
// install-dir ranking keep working.
func (m Manifest) AddCustomGame(custom CustomGame) {
	game := Game{
		Files:    make(map[string]FileEntry, len(custom.Files)),
		Registry: make(map[string]RegistryEntry, len(custom.Registry)),
	}
	for _, pattern := range custom.Files {
		game.Files[pattern] = FileEntry{}
	}
	for _, pattern := range custom.Registry {
		game.Registry[pattern] = RegistryEntry{}
	}
	if existing, ok := m[custom.Name]; ok {
		game.Steam = existing.Steam
		game.Gog = existing.Gog
		game.InstallDir = existing.InstallDir
	}
	m[custom.Name] = game
}

// AddCustomGames merges all non-ignored custom games into the manifest.
func (m Manifest) AddCustomGames(customs []CustomGame) {
	for _, custom := range customs {
		if custom.Ignore {
			continue
		}
		m.AddCustomGame(custom)
	}
}
