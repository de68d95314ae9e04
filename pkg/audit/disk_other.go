//go:build !(linux || darwin || freebsd)

package audit

// checkDiskSpace is not implemented on this platform.
func (l *Logger) checkDiskSpace() error {
	return nil
}
