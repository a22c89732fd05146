//go:build !linux && !darwin

// Stub poller for every platform other than Linux and Darwin (notably
// Windows, which uses the RIO variant instead; the BSDs also get this
// stub).
package readiness

import "errors"

var errPlatformNotSupported = errors.New("readiness: no epoll/kqueue on this platform")

func newPoller() (poller, error) { return nil, errPlatformNotSupported }
