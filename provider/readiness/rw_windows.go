//go:build windows

package readiness

import "errors"

// osRead/osWrite are unreachable on Windows: newPoller always fails
// PlatformNotSupported there, so Provider.Initialize never succeeds and
// ProcessCompletions is never invoked.
func osRead(fd int, buf []byte) (int, error)  { return 0, errors.New("readiness: unsupported on windows") }
func osWrite(fd int, buf []byte) (int, error) { return 0, errors.New("readiness: unsupported on windows") }
