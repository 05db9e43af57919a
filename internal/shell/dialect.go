// Package shell builds shell-specific script invocations.
//
// Every supported shell is a value of the closed Kind enum, and the builder
// switches exhaustively over it. The two rules that matter:
//
//  1. The stderr-merge redirection is written in the target shell's own
//     syntax, inside the target shell's quoting. A POSIX `2>&1` pasted into
//     an outer PowerShell command line would be reinterpreted by the outer
//     shell, so nested invocations (wsl) keep the redirection inside the
//     inner quoted string.
//  2. Script paths are rewritten into the target shell's path model when it
//     differs from the host's (WSL mounts, Git-Bash slash form).
package shell

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/scriptrun/runnerd/internal/shared/paths"
)

// Kind identifies a supported shell dialect.
type Kind int

const (
	Unknown Kind = iota
	Bash
	Sh
	Zsh
	Fish
	Pwsh
	PowerShell
	Cmd
	WSL
	GitBash
)

var kindNames = map[Kind]string{
	Bash:       "bash",
	Sh:         "sh",
	Zsh:        "zsh",
	Fish:       "fish",
	Pwsh:       "pwsh",
	PowerShell: "powershell",
	Cmd:        "cmd",
	WSL:        "wsl",
	GitBash:    "gitbash",
}

// String returns the wire name of the kind, or "unknown".
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Parse maps a wire name to a Kind. Unrecognized names map to Unknown.
func Parse(name string) Kind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bash":
		return Bash
	case "sh":
		return Sh
	case "zsh":
		return Zsh
	case "fish":
		return Fish
	case "pwsh":
		return Pwsh
	case "powershell":
		return PowerShell
	case "cmd":
		return Cmd
	case "wsl":
		return WSL
	case "gitbash", "git-bash":
		return GitBash
	}
	return Unknown
}

// Detect infers the shell kind from an executable path, e.g. the value of
// $SHELL. Best-effort; unrecognized binaries map to Unknown.
func Detect(shellPath string) Kind {
	// Windows separators are converted by hand; filepath.ToSlash is a
	// no-op off Windows.
	slashed := strings.ReplaceAll(shellPath, `\`, "/")
	base := strings.ToLower(filepath.Base(slashed))
	base = strings.TrimSuffix(base, ".exe")

	switch base {
	case "bash":
		return Bash
	case "sh", "dash", "ash":
		return Sh
	case "zsh":
		return Zsh
	case "fish":
		return Fish
	case "pwsh":
		return Pwsh
	case "powershell":
		return PowerShell
	case "cmd":
		return Cmd
	case "wsl":
		return WSL
	}
	return Unknown
}

// Extension returns the script file extension for the kind, dot included.
func Extension(k Kind) string {
	switch k {
	case Pwsh, PowerShell:
		return ".ps1"
	case Cmd:
		return ".bat"
	case Bash, Sh, Zsh, Fish, WSL, GitBash, Unknown:
		return ".sh"
	}
	return ".sh"
}

// SessionPrefix returns the display-name prefix used when the pool looks for
// an idle session able to run this dialect.
func SessionPrefix(k Kind) string {
	return fmt.Sprintf("Runner (%s)", k.String())
}

// Build returns the full invocation string that runs scriptPath under the
// target shell with stderr merged into stdout. Pure; no validation of the
// script itself.
func Build(scriptPath string, target Kind) string {
	switch target {
	case Bash:
		return fmt.Sprintf("bash %s 2>&1", posixQuote(scriptPath))
	case Zsh:
		return fmt.Sprintf("zsh %s 2>&1", posixQuote(scriptPath))
	case Fish:
		return fmt.Sprintf("fish %s 2>&1", posixQuote(scriptPath))
	case Pwsh:
		return fmt.Sprintf("pwsh -NoProfile -File %s 2>&1", powershellQuote(scriptPath))
	case PowerShell:
		return fmt.Sprintf("powershell -NoProfile -ExecutionPolicy Bypass -File %s 2>&1", powershellQuote(scriptPath))
	case Cmd:
		// cmd applies its own 2>&1 inside the /c string
		return fmt.Sprintf(`cmd /d /c "%s 2>&1"`, scriptPath)
	case WSL:
		// The redirection must travel into WSL, not be consumed by the
		// invoking shell, so the whole inner command is a single argument.
		inner := fmt.Sprintf("sh %s 2>&1", posixQuote(paths.ToWSL(scriptPath)))
		return fmt.Sprintf("wsl -e sh -c %s", posixQuote(inner))
	case GitBash:
		return fmt.Sprintf("bash %s 2>&1", posixQuote(paths.ToGitBash(scriptPath)))
	case Sh, Unknown:
		return fmt.Sprintf("sh %s 2>&1", posixQuote(scriptPath))
	}
	return fmt.Sprintf("sh %s 2>&1", posixQuote(scriptPath))
}

// posixQuote single-quotes a string for POSIX shells.
func posixQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// powershellQuote double-quotes a string for PowerShell, escaping embedded
// double quotes with backticks.
func powershellQuote(s string) string {
	s = strings.ReplaceAll(s, "`", "``")
	s = strings.ReplaceAll(s, `"`, "`\"")
	return `"` + s + `"`
}
