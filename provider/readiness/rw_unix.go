//go:build !windows

package readiness

import "golang.org/x/sys/unix"

func osRead(fd int, buf []byte) (int, error)  { return unix.Read(fd, buf) }
func osWrite(fd int, buf []byte) (int, error) { return unix.Write(fd, buf) }
