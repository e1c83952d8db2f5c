// module.go locates the Go module a trace was recorded in.
package main

import (
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// findGoMod walks up from startDir looking for go.mod.
//
// Returns the path of the nearest go.mod, or "" at the filesystem root.
func findGoMod(startDir string) string {
	dir := startDir
	for {
		modPath := filepath.Join(dir, "go.mod")
		if st, err := os.Stat(modPath); err == nil && !st.IsDir() {
			return modPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// modulePath returns the module path declared in the go.mod at goModPath.
//
// Unreadable or malformed files yield "": the module label is informational
// and never fails a replay.
func modulePath(goModPath string) string {
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return ""
	}

	modFile, err := modfile.Parse(goModPath, data, nil)
	if err != nil || modFile.Module == nil {
		return ""
	}
	return modFile.Module.Mod.Path
}
