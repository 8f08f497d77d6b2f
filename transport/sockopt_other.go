//go:build !unix

package transport

import (
	"errors"
	"syscall"
)

func controlSocket(network, address string, c syscall.RawConn) error {
	return nil
}

func isInterrupted(err error) bool {
	return false
}

func errnoOf(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}
