//go:build deadlock

// Package syncutil holds the mutex types used by the beam sequencer and the
// serial transport. This file is compiled with -tags=deadlock.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// DefaultLockTimeout covers the longest beam sequence on a slow link: twenty
// exchanges at a generous idle timeout, plus the caller's own work.
const DefaultLockTimeout = 30 * time.Second

func init() {
	deadlock.Opts.DeadlockTimeout = DefaultLockTimeout
}

// Mutex serialises access to one array link, with deadlock detection.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex guards state read by sweeps, with deadlock detection.
type RWMutex struct {
	deadlock.RWMutex
}

// DetectionEnabled reports whether lock-order and timeout detection is compiled in.
const DetectionEnabled = true

// SetLockTimeout changes how long a lock may be waited on before it is
// reported as a deadlock.
func SetLockTimeout(d time.Duration) {
	deadlock.Opts.DeadlockTimeout = d
}
