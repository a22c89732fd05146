//go:build windows

package config

// defaultFlavor selects RIO on Windows.
func defaultFlavor() Flavor { return FlavorRIO }
