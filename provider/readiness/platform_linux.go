//go:build linux

package readiness

const (
	platformTag  = "linux"
	platformName = "epoll readiness adapter"
)
