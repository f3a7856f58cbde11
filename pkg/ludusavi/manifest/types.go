// Package manifest models the declarative table of games and their save
// locations. A manifest maps each game name to file and registry path
// patterns, each optionally guarded by OS/store constraints, plus store
// metadata used for id-based lookups.
package manifest

import "runtime"

// Os identifies the operating system a path pattern applies to.
type Os string

// Operating systems recognized by manifest constraints.
const (
	OsWindows Os = "windows"
	OsLinux   Os = "linux"
	OsMac     Os = "mac"
	OsOther   Os = "other"
)

// CurrentOs returns the Os value for the running platform.
func CurrentOs() Os {
	switch runtime.GOOS {
	case "windows":
		return OsWindows
	case "linux":
		return OsLinux
	case "darwin":
		return OsMac
	default:
		return OsOther
	}
}

// Store identifies the launcher or distribution platform that owns a scan
// root or constrains a path pattern.
type Store string

// Stores recognized by manifest constraints and root configuration.
const (
	StoreEpic      Store = "epic"
	StoreGog       Store = "gog"
	StoreGogGalaxy Store = "gogGalaxy"
	StoreHeroic    Store = "heroic"
	StoreMicrosoft Store = "microsoft"
	StoreOrigin    Store = "origin"
	StorePrime     Store = "prime"
	StoreSteam     Store = "steam"
	StoreUplay     Store = "uplay"
	StoreOtherHome Store = "otherHome"
	StoreOtherWine Store = "otherWine"
	StoreOther     Store = "other"
)

// AllStores lists every recognized store, in a stable order.
var AllStores = []Store{
	StoreEpic,
	StoreGog,
	StoreGogGalaxy,
	StoreHeroic,
	StoreMicrosoft,
	StoreOrigin,
	StorePrime,
	StoreSteam,
	StoreUplay,
	StoreOtherHome,
	StoreOtherWine,
	StoreOther,
}

// Tag classifies what kind of data a path pattern captures.
type Tag string

// Path pattern tags.
const (
	TagSave   Tag = "save"
	TagConfig Tag = "config"
	TagOther  Tag = "other"
)

// FileConstraint restricts a file pattern to a particular OS and/or store.
// Empty fields are wildcards.
type FileConstraint struct {
	Os    Os    `yaml:"os,omitempty"`
	Store Store `yaml:"store,omitempty"`
}

// RegistryConstraint restricts a registry pattern to a particular store.
type RegistryConstraint struct {
	Store Store `yaml:"store,omitempty"`
}

// FileEntry describes one file path pattern of a game.
type FileEntry struct {
	Tags []Tag            `yaml:"tags,omitempty"`
	When []FileConstraint `yaml:"when,omitempty"`
}

// RegistryEntry describes one registry key pattern of a game.
type RegistryEntry struct {
	Tags []Tag                `yaml:"tags,omitempty"`
	When []RegistryConstraint `yaml:"when,omitempty"`
}

// InstallDirEntry marks a known installation directory name for a game.
// It carries no data of its own; the map key is the directory name.
type InstallDirEntry struct{}

// SteamMetadata carries a game's Steam app id.
type SteamMetadata struct {
	ID uint32 `yaml:"id,omitempty"`
}

// GogMetadata carries a game's GOG product id.
type GogMetadata struct {
	ID uint64 `yaml:"id,omitempty"`
}

// Game is one manifest entry: the save locations and store metadata for a
// single game, keyed by its canonical name in the Manifest.
type Game struct {
	Files      map[string]FileEntry       `yaml:"files,omitempty"`
	InstallDir map[string]InstallDirEntry `yaml:"installDir,omitempty"`
	Registry   map[string]RegistryEntry   `yaml:"registry,omitempty"`
	Steam      *SteamMetadata             `yaml:"steam,omitempty"`
	Gog        *GogMetadata               `yaml:"gog,omitempty"`
}

// Context is the platform/store environment a scan runs in. Constraints are
// evaluated against it.
type Context struct {
	Os    Os
	Store Store
}

// matches reports whether a single constraint accepts the context. Fields the
// constraint leaves empty are wildcards.
func (c FileConstraint) matches(ctx Context) bool {
	if c.Os != "" && c.Os != ctx.Os {
		return false
	}
	if c.Store != "" && c.Store != ctx.Store {
		return false
	}
	return true
}

func (c RegistryConstraint) matches(ctx Context) bool {
	return c.Store == "" || c.Store == ctx.Store
}

// Applies reports whether the file entry is in effect for the given context.
// An entry with no constraints always applies; otherwise any one matching
// constraint suffices.
func (e FileEntry) Applies(ctx Context) bool {
	if len(e.When) == 0 {
		return true
	}
	for _, c := range e.When {
		if c.matches(ctx) {
			return true
		}
	}
	return false
}

// Applies reports whether the registry entry is in effect for the given
// context.
func (e RegistryEntry) Applies(ctx Context) bool {
	if len(e.When) == 0 {
		return true
	}
	for _, c := range e.When {
		if c.matches(ctx) {
			return true
		}
	}
	return false
}
