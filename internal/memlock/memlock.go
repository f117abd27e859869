// Package memlock tracks the process-wide total of packet-arena
// memory locked via mmap, bumping RLIMIT_MEMLOCK as needed so that
// opening further arenas doesn't fail once the default limit is
// exceeded.
package memlock

import (
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var (
	mu     sync.Mutex
	locked uint64
)

// Reserve raises the process-wide counter by size bytes, raising
// RLIMIT_MEMLOCK first if the new total would exceed it.
func Reserve(size uint64) error {
	mu.Lock()
	defer mu.Unlock()

	locked += size

	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlim); err != nil {
		locked -= size
		return err
	}
	limit := rlim.Cur
	if rlim.Max < limit {
		limit = rlim.Max
	}
	if limit < locked {
		newRlim := unix.Rlimit{Cur: locked, Max: locked}
		if err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &newRlim); err != nil {
			locked -= size
			return err
		}
	}
	return nil
}

// Release lowers the counter by size bytes. Releasing more than is
// tracked indicates a double-release bug upstream; it's logged and
// clamped rather than allowed to underflow.
func Release(size uint64) {
	mu.Lock()
	defer mu.Unlock()
	if size > locked {
		logrus.WithFields(logrus.Fields{"size": size, "locked": locked}).
			Warn("memlock: releasing more locked memory than is tracked")
		locked = 0
		return
	}
	locked -= size
}

// Locked reports the current process-wide total.
func Locked() uint64 {
	mu.Lock()
	defer mu.Unlock()
	return locked
}
