package paths

import (
	"io/fs"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/gobwas/glob"
)

// caseInsensitive reports whether path matching should ignore case, which is
// the common filesystem default on these platforms.
var caseInsensitive = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// globMeta are the characters that make a pattern segment a glob.
const globMeta = "*?[{"

// hasGlobMeta reports whether the string contains glob metacharacters.
func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, globMeta)
}

// globBase splits a normalized pattern into the literal directory prefix to
// walk from and reports whether the remainder contains glob segments.
func globBase(pattern string) (string, bool) {
	if !hasGlobMeta(pattern) {
		return pattern, false
	}
	segments := strings.Split(pattern, "/")
	var literal []string
	for _, seg := range segments {
		if hasGlobMeta(seg) {
			break
		}
		literal = append(literal, seg)
	}
	base := strings.Join(literal, "/")
	if base == "" {
		base = "/"
	}
	return base, true
}

// Expand resolves a glob pattern into the existing files it matches. `*`
// matches within a path segment, `**` across segments. A matched directory
// contributes every file beneath it. The result is a fresh, sorted snapshot;
// re-invoke to rescan.
func Expand(pattern string) []string {
	pattern = Normalize(pattern)
	if pattern == "" {
		return nil
	}

	base, isGlob := globBase(pattern)
	if !isGlob {
		return expandLiteral(pattern)
	}

	matcher, err := compileGlob(pattern)
	if err != nil {
		return nil
	}
	if _, err := os.Stat(base); err != nil {
		return nil
	}

	// fastwalk runs the callback from multiple goroutines; a directory's
	// callback still runs before any of its children are visited.
	var (
		mu          sync.Mutex
		files       []string
		matchedDirs []string
	)
	conf := fastwalk.Config{Follow: false}
	_ = fastwalk.Walk(&conf, base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		n := Normalize(p)
		mu.Lock()
		under := underAny(n, matchedDirs)
		mu.Unlock()
		if !under && !matchGlob(matcher, n) {
			return nil
		}
		if d.IsDir() {
			if !under {
				mu.Lock()
				matchedDirs = append(matchedDirs, n)
				mu.Unlock()
			}
			return nil
		}
		if d.Type().IsRegular() {
			mu.Lock()
			files = append(files, n)
			mu.Unlock()
		}
		return nil
	})

	sort.Strings(files)
	return files
}

// expandLiteral handles a pattern with no glob segments: a file matches
// itself, a directory contributes all files beneath it.
func expandLiteral(p string) []string {
	info, err := os.Stat(p)
	if err != nil {
		return nil
	}
	if !info.IsDir() {
		return []string{p}
	}

	var (
		mu    sync.Mutex
		files []string
	)
	conf := fastwalk.Config{Follow: false}
	_ = fastwalk.Walk(&conf, p, func(sub string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			mu.Lock()
			files = append(files, Normalize(sub))
			mu.Unlock()
		}
		return nil
	})
	sort.Strings(files)
	return files
}

func compileGlob(pattern string) (glob.Glob, error) {
	if caseInsensitive {
		pattern = strings.ToLower(pattern)
	}
	return glob.Compile(pattern, '/')
}

func matchGlob(g glob.Glob, p string) bool {
	if caseInsensitive {
		p = strings.ToLower(p)
	}
	return g.Match(p)
}

func underAny(p string, dirs []string) bool {
	for _, dir := range dirs {
		if hasPrefixDir(p, dir) {
			return true
		}
	}
	return false
}
