//go:build !linux && !darwin

package readiness

const (
	platformTag  = "generic"
	platformName = "readiness adapter (unsupported on this platform)"
)
