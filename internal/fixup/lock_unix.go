//go:build !windows

package fixup

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// lockPath takes an advisory exclusive flock on objPath for the duration
// of the fixup pass, matching the original tool's guard against two
// compiler invocations racing to fix up the same object (spec.md §5).
func lockPath(objPath string) (unlock func(), err error) {
	f, err := os.OpenFile(objPath, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock: %w", err)
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
