package paths

import (
	"os"
	"os/user"
	"strings"

	"github.com/adrg/xdg"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/manifest"
)

// ResolveContext supplies the values placeholder tokens expand to for one
// game and one scan root.
type ResolveContext struct {
	// Root is the scan root path.
	Root string

	// Base is the game's ranked installation directory under the root,
	// empty when unknown.
	Base string

	// Game is the install directory name or, failing that, the game name.
	Game string

	// Os and Store describe the root's platform context.
	Os    manifest.Os
	Store manifest.Store

	// Home is the user's home directory; defaults to the OS value.
	Home string

	// WinePrefix is an optional compatibility-layer prefix containing a
	// drive_c directory; Windows tokens resolve beneath it on non-Windows
	// platforms.
	WinePrefix string

	// StoreUserID substitutes for per-user store directories; defaults to
	// a wildcard so globbing covers every profile.
	StoreUserID string
}

// NewResolveContext builds a context for a root with platform defaults
// filled in.
func NewResolveContext(root string, store manifest.Store) ResolveContext {
	home, _ := os.UserHomeDir()
	return ResolveContext{
		Root:        Normalize(root),
		Os:          manifest.CurrentOs(),
		Store:       store,
		Home:        Normalize(home),
		StoreUserID: "*",
	}
}

// userName returns the current OS user name, or a wildcard when unknown.
func userName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		// Strip a Windows domain prefix.
		name := u.Username
		if i := strings.LastIndexAny(name, `\/`); i >= 0 {
			name = name[i+1:]
		}
		return name
	}
	return "*"
}

// winDriveC returns the Windows system drive for the context: the real one on
// Windows, the Wine prefix's drive_c elsewhere, or "" when neither applies.
func (c ResolveContext) winDriveC() string {
	if c.Os == manifest.OsWindows {
		return "C:"
	}
	if c.WinePrefix != "" {
		return Normalize(c.WinePrefix) + "/drive_c"
	}
	return ""
}

// winHome returns the Windows-shaped home directory for the context.
func (c ResolveContext) winHome() string {
	if c.Os == manifest.OsWindows {
		return c.Home
	}
	if drive := c.winDriveC(); drive != "" {
		return drive + "/users/" + c.StoreUserID
	}
	return ""
}

// Resolve expands the placeholder tokens in a manifest pattern. It returns
// the expanded pattern and false when a required token has no value in this
// context (the pattern is then skipped for this root).
func (c ResolveContext) Resolve(pattern string) (string, bool) {
	winHome := c.winHome()
	winDrive := c.winDriveC()

	replacements := []struct {
		token string
		value string
	}{
		{"<root>", c.Root},
		{"<base>", c.Base},
		{"<game>", c.Game},
		{"<home>", c.Home},
		{"<storeUserId>", c.StoreUserID},
		{"<osUserName>", userName()},
		{"<winAppData>", joinIf(winHome, "AppData/Roaming")},
		{"<winLocalAppData>", joinIf(winHome, "AppData/Local")},
		{"<winDocuments>", joinIf(winHome, "Documents")},
		{"<winPublic>", joinIf(winDrive, "Users/Public")},
		{"<winProgramData>", joinIf(winDrive, "ProgramData")},
		{"<winDir>", joinIf(winDrive, "Windows")},
		{"<xdgData>", Normalize(xdg.DataHome)},
		{"<xdgConfig>", Normalize(xdg.ConfigHome)},
	}

	out := Normalize(pattern)
	for _, r := range replacements {
		if !strings.Contains(out, r.token) {
			continue
		}
		if r.value == "" {
			return "", false
		}
		out = strings.ReplaceAll(out, r.token, r.value)
	}
	if strings.Contains(out, "<") {
		// Unknown token.
		return "", false
	}
	return Normalize(out), true
}

func joinIf(base, rest string) string {
	if base == "" {
		return ""
	}
	return base + "/" + rest
}
