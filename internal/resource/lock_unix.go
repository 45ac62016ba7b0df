//go:build !windows

package resource

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// lockExclusive takes a non-blocking exclusive flock(2) on f for the
// lifetime of the process holding it, grounded on the flock idiom used to
// serialize test fixtures against a shared directory elsewhere in the pack.
func lockExclusive(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return fmt.Errorf("resource: acquire exclusive lock: %w", err)
	}
	return nil
}

func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
