// Package searchpath edits list-valued search path variables such as PATH.
//
// The entry flow drops the running binary's own directory from PATH so a
// like-named local executable cannot shadow the installed ollama runtime for
// any child process.
package searchpath

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Guard returns a copy of entries with the first entry equal to dir removed.
// Entries are compared after filepath.Clean. When dir is absent the copy is
// unchanged.
func Guard(entries []string, dir string) []string {
	out := slices.Clone(entries)
	if out == nil {
		out = []string{}
	}

	target := filepath.Clean(dir)
	for i, entry := range out {
		if entry != "" && filepath.Clean(entry) == target {
			return slices.Delete(out, i, i+1)
		}
	}

	return out
}

// Split breaks a search path value into its entries.
func Split(value string) []string {
	if value == "" {
		return []string{}
	}
	return strings.Split(value, string(os.PathListSeparator))
}

// Join assembles entries into a search path value.
func Join(entries []string) string {
	return strings.Join(entries, string(os.PathListSeparator))
}

// GuardEnv applies Guard to the environment variable key and writes the
// result back. It reports whether an entry was removed.
func GuardEnv(key, dir string) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return false, nil
	}

	entries := Split(value)
	guarded := Guard(entries, dir)
	if len(guarded) == len(entries) {
		return false, nil
	}

	if err := os.Setenv(key, Join(guarded)); err != nil {
		return false, fmt.Errorf("rewriting %s: %w", key, err)
	}

	return true, nil
}

// ExecutableDir returns the absolute directory holding the running binary,
// with symlinks resolved.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating executable: %w", err)
	}

	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	return filepath.Dir(exe), nil
}
