package installer

import (
	"os"
	"path/filepath"
)

// DetectSitePackages locates the site-packages directory of the active
// virtualenv via $VIRTUAL_ENV. Returns "" when no virtualenv is active or
// its layout is unrecognized, which puts the installer in metadata-only
// mode.
func DetectSitePackages() string {
	venv := os.Getenv("VIRTUAL_ENV")
	if venv == "" {
		return ""
	}

	// POSIX layout: <venv>/lib/pythonX.Y/site-packages
	matches, _ := filepath.Glob(filepath.Join(venv, "lib", "python*", "site-packages"))
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			return m
		}
	}

	// Windows layout: <venv>/Lib/site-packages
	win := filepath.Join(venv, "Lib", "site-packages")
	if info, err := os.Stat(win); err == nil && info.IsDir() {
		return win
	}
	return ""
}
