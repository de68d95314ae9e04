//go:build windows

package config

import (
	"fmt"
	"os"
)

// openConfigFile has no O_NOFOLLOW on Windows; creating symlinks there needs
// elevated privileges.
func openConfigFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("config: failed to open %s: %w", path, err)
	}
	return f, nil
}

// checkFileSecurity is a no-op; Windows uses ACLs.
func checkFileSecurity(os.FileInfo) error {
	return nil
}
