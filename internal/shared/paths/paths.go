// Package paths provides path normalization and cross-shell path translation.
//
// The session pool compares working directories from heterogeneous sources
// (caller input, shell reports), so equality must ignore separator style,
// trailing separators, and case on case-insensitive platforms. The dialect
// builder additionally needs host paths rewritten into the path model of the
// target shell (WSL mounts, Git-Bash slash form).
package paths

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Normalize canonicalizes a path for comparison: cleaned, forward slashes,
// trailing separator stripped, lowercased on case-insensitive platforms.
func Normalize(path string) string {
	if path == "" {
		return ""
	}

	p := filepath.ToSlash(filepath.Clean(path))

	// Clean leaves "/" alone; only strip trailing separators on longer paths
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}

	if !caseSensitive() {
		p = strings.ToLower(p)
	}

	return p
}

// Equal reports whether two paths refer to the same directory after
// normalization. Empty paths are only equal to other empty paths.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// caseSensitive reports whether the host filesystem distinguishes case.
// Best-effort: keyed on OS, not on the actual mounted filesystem.
func caseSensitive() bool {
	switch runtime.GOOS {
	case "windows", "darwin":
		return false
	default:
		return true
	}
}

// ToWSL translates a Windows host path into the WSL mount convention,
// e.g. `C:\Users\dev` -> `/mnt/c/Users/dev`. Paths without a drive letter
// are returned in slash form unchanged.
func ToWSL(path string) string {
	p := slashed(path)

	if len(p) >= 2 && p[1] == ':' && isDriveLetter(p[0]) {
		drive := strings.ToLower(string(p[0]))
		rest := strings.TrimPrefix(p[2:], "/")
		if rest == "" {
			return "/mnt/" + drive
		}
		return "/mnt/" + drive + "/" + rest
	}

	return p
}

// ToGitBash translates a Windows host path into Git-Bash form,
// e.g. `C:\Users\dev` -> `/c/Users/dev`.
func ToGitBash(path string) string {
	p := slashed(path)

	if len(p) >= 2 && p[1] == ':' && isDriveLetter(p[0]) {
		drive := strings.ToLower(string(p[0]))
		rest := strings.TrimPrefix(p[2:], "/")
		if rest == "" {
			return "/" + drive
		}
		return "/" + drive + "/" + rest
	}

	return p
}

// slashed converts Windows separators regardless of the host OS;
// filepath.ToSlash is a no-op off Windows.
func slashed(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}

func isDriveLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
