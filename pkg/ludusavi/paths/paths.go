// Package paths resolves manifest path patterns into concrete filesystem
// paths. It expands placeholder tokens against a scan root's store context,
// globs the filesystem, applies redirect rules, and converts between native
// and portable (drive-independent) path representations.
package paths

import (
	"path"
	"regexp"
	"strings"
)

// driveLetter matches a Windows drive prefix on a normalized path.
var driveLetter = regexp.MustCompile(`^[A-Za-z]:(/|$)`)

// Normalize converts a path to the canonical internal form: forward slashes,
// cleaned, with Windows drive letters uppercased.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return ""
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return ""
	}
	if driveLetter.MatchString(cleaned) {
		cleaned = strings.ToUpper(cleaned[:1]) + cleaned[1:]
	}
	return cleaned
}

// ToPortable converts an absolute path to a drive-independent representation
// suitable for storage: a Windows drive letter becomes a named leading
// segment ("C:/x" -> "drive-C/x"), and a rootless Unix path gains one
// ("/x" -> "drive/x").
func ToPortable(p string) string {
	n := Normalize(p)
	if driveLetter.MatchString(n) {
		return "drive-" + n[:1] + n[2:]
	}
	if strings.HasPrefix(n, "/") {
		return "drive" + n
	}
	return n
}

// FromPortable is the inverse of ToPortable. The round trip
// FromPortable(ToPortable(p)) yields Normalize(p).
func FromPortable(s string) string {
	if strings.HasPrefix(s, "drive-") && len(s) > len("drive-") {
		rest := s[len("drive-"):]
		letter := rest[:1]
		rest = rest[1:]
		if rest == "" {
			rest = "/"
		}
		return letter + ":" + rest
	}
	if s == "drive" {
		return "/"
	}
	if strings.HasPrefix(s, "drive/") {
		return s[len("drive"):]
	}
	return s
}

// hasPrefixDir reports whether p equals prefix or lives under it.
func hasPrefixDir(p, prefix string) bool {
	if prefix == "" {
		return false
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// RedirectKind selects the operation direction a redirect rule applies to.
type RedirectKind string

// Redirect rule kinds.
const (
	RedirectBackup        RedirectKind = "backup"
	RedirectRestore       RedirectKind = "restore"
	RedirectBidirectional RedirectKind = "bidirectional"
)

// RedirectRule rewrites a path prefix from Source to Target when moving data
// between its original and backed-up locations.
type RedirectRule struct {
	Kind   RedirectKind `yaml:"kind" mapstructure:"kind"`
	Source string       `yaml:"source" mapstructure:"source"`
	Target string       `yaml:"target" mapstructure:"target"`
}

// Redirect applies the first matching rule for the given direction and
// returns the rewritten path, or the input unchanged if no rule matches.
// In the backup direction, backup and bidirectional rules rewrite
// Source -> Target. In the restore direction, restore rules rewrite
// Source -> Target while bidirectional rules reverse Target -> Source.
func Redirect(p string, rules []RedirectRule, restoring bool) string {
	n := Normalize(p)
	for _, rule := range rules {
		src := Normalize(rule.Source)
		dst := Normalize(rule.Target)
		if restoring {
			switch rule.Kind {
			case RedirectRestore:
				// keep src -> dst
			case RedirectBidirectional:
				src, dst = dst, src
			default:
				continue
			}
		} else {
			if rule.Kind != RedirectBackup && rule.Kind != RedirectBidirectional {
				continue
			}
		}
		if hasPrefixDir(n, src) {
			return dst + n[len(src):]
		}
	}
	return n
}
