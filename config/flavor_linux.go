//go:build linux

package config

// defaultFlavor prefers io_uring on Linux; callers may override via
// WithFlavor or fall back to epoll where io_uring is unavailable.
func defaultFlavor() Flavor { return FlavorIOURing }
