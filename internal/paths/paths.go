package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	appName = "ingot"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644

	// Default permission mode for staged and installed executables.
	DefaultExecMode os.FileMode = 0755
)

// Path to the directory for toolchain logs.
//
//	Linux:   $XDG_STATE_HOME/ingot/log or ~/.local/state/ingot/log
//	macOS:   ~/Library/Application Support/ingot/log
func LogDir() string {
	return filepath.Join(xdg.StateHome, appName, "log")
}
