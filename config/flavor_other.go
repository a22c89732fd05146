//go:build !linux && !windows

package config

// defaultFlavor selects the kqueue readiness adapter on every platform
// other than Linux and Windows. The readiness adapter implements kqueue
// on Darwin only; elsewhere its Initialize reports PlatformNotSupported.
func defaultFlavor() Flavor { return FlavorKqueue }
