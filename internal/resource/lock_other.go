//go:build windows

package resource

import "os"

// lockExclusive is a no-op on platforms without flock(2); the file is still
// opened exclusively via os.O_EXCL semantics at create time.
func lockExclusive(f *os.File) error { return nil }

func unlockFile(f *os.File) error { return nil }
