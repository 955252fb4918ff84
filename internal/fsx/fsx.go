// Package fsx holds the filesystem moves the hook makes around Radarr's scanner.
package fsx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// QuarantineMarker is inserted before the extension of a quarantined file.
const QuarantineMarker = ".rnm"

// Replaceable so tests can simulate EXDEV and other rename failures.
var renameFunc = os.Rename

// CrossDeviceError marks a rename that failed because source and destination
// are on different filesystems. Quarantine never falls back to copy+delete.
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cross-device rename %q -> %q: %v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice reports whether err is (or wraps) a CrossDeviceError.
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename wraps os.Rename and tags EXDEV failures as CrossDeviceError.
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// QuarantineCandidate returns the n-th sibling name for path: n=1 gives
// "movie.rnm.mkv", n=2 gives "movie.rnm2.mkv" and so on.
func QuarantineCandidate(path string, n int) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	if n <= 1 {
		return stem + QuarantineMarker + ext
	}
	return stem + QuarantineMarker + strconv.Itoa(n) + ext
}

// Quarantine renames path aside to the first free QuarantineCandidate so
// Radarr's scanner does not pick it up mid-processing. The move is a single
// rename. On error the original file is untouched and the caller should keep
// working with path.
func Quarantine(path string) (string, error) {
	if _, err := os.Lstat(path); err != nil {
		return "", fmt.Errorf("cannot quarantine %s: %w", path, err)
	}

	var target string
	for n := 1; ; n++ {
		target = QuarantineCandidate(path, n)
		_, err := os.Lstat(target)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("cannot check quarantine candidate %s: %w", target, err)
		}
	}

	if err := Rename(path, target); err != nil {
		return "", fmt.Errorf("cannot quarantine %s: %w", path, err)
	}
	return target, nil
}
