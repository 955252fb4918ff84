//go:build windows

package fsx

import (
	"errors"
	"os"
	"syscall"
)

// ERROR_NOT_SAME_DEVICE is what MoveFileEx reports for a cross-volume move.
const errorNotSameDevice syscall.Errno = 17

func isEXDEV(err error) bool {
	var le *os.LinkError
	if errors.As(err, &le) {
		err = le.Err
	}
	return errors.Is(err, errorNotSameDevice)
}
