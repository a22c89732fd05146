//go:build darwin

package readiness

const (
	platformTag  = "darwin"
	platformName = "kqueue readiness adapter"
)
