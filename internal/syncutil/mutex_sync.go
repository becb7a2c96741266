//go:build !deadlock

// Package syncutil holds the mutex types used by the beam sequencer and the
// serial transport. Plain sync types are used unless the binary is built with
// -tags=deadlock, which swaps in github.com/sasha-s/go-deadlock.
package syncutil

import (
	"sync"
	"time"
)

// Mutex serialises access to one array link.
//
//nolint:gocritic // embedding exposes Lock/Unlock directly
type Mutex struct {
	sync.Mutex
}

// RWMutex guards state read by sweeps while a sequence is in flight.
//
//nolint:gocritic // embedding exposes the lock methods directly
type RWMutex struct {
	sync.RWMutex
}

// DetectionEnabled reports whether lock-order and timeout detection is compiled in.
const DetectionEnabled = false

// SetLockTimeout is a no-op without the deadlock build tag.
func SetLockTimeout(time.Duration) {}
