// File: runtime/rawfd.go
package runtime

import (
	"net"
	"syscall"

	"github.com/momentics/hioload-ioprovider/ioerr"
)

type syscaller interface {
	SyscallConn() (syscall.RawConn, error)
}

// rawFD extracts the OS socket handle backing conn, the same
// *syscall.RawConn.Control trick the sibling momentics-hioload-ws
// example's internal/transport/transport_windows.go uses to adopt an
// existing net.Conn into its own completion-based transport. The
// returned value is a Linux/BSD file descriptor or a Windows SOCKET,
// both expressed as uintptr, matching the Provider contract's socket
// parameter.
func rawFD(conn net.Conn) (uintptr, error) {
	sc, ok := conn.(syscaller)
	if !ok {
		return 0, ioerr.New("rawFD", ioerr.CodeInvalidSocket, "connection does not expose SyscallConn")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, ioerr.Wrap("rawFD", ioerr.CodeInvalidSocket, err)
	}
	var fd uintptr
	if err := raw.Control(func(f uintptr) { fd = f }); err != nil {
		return 0, ioerr.Wrap("rawFD", ioerr.CodeInvalidSocket, err)
	}
	return fd, nil
}
