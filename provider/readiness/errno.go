package readiness

import "syscall"

// errnoOf extracts a numeric OS error code from err, or 1 if err does
// not carry a syscall.Errno.
func errnoOf(err error) int {
	if errno, ok := err.(syscall.Errno); ok {
		return int(errno)
	}
	return 1
}
