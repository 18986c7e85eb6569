// Package paths resolves the on-disk layout of the extension host's data
// directory. All components derive file locations from a single Layout so
// the directory structure is defined in one place.
package paths

import "path/filepath"

// Default file and directory names under the data dir.
const (
	ExtensionsDirName  = "extensions"
	VisibilityFileName = "extension_visibility.json"
	TimersFileName     = "timers.json"
)

// Layout holds resolved absolute paths for the host's persistent state.
type Layout struct {
	DataDir       string
	ExtensionsDir string
}

// NewLayout builds a Layout rooted at dataDir. An explicit extensionsDir
// overrides the default <dataDir>/extensions.
func NewLayout(dataDir, extensionsDir string) Layout {
	if extensionsDir == "" {
		extensionsDir = filepath.Join(dataDir, ExtensionsDirName)
	}
	return Layout{
		DataDir:       dataDir,
		ExtensionsDir: extensionsDir,
	}
}

// VisibilityFile is the per-room extension visibility store.
func (l Layout) VisibilityFile() string {
	return filepath.Join(l.DataDir, VisibilityFileName)
}

// TimersFile is the durable timer-service record.
func (l Layout) TimersFile() string {
	return filepath.Join(l.DataDir, TimersFileName)
}

// Extension returns the install directory for a folder name. The caller
// must have validated the folder name first.
func (l Layout) Extension(folder string) string {
	return filepath.Join(l.ExtensionsDir, folder)
}
