// go-aip
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-aip.
//
// go-aip is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-aip is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-aip; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package detection

import (
	"slices"
	"strings"
	"time"

	"github.com/ZaparooProject/go-aip/internal/syncutil"
)

// scanKey identifies a ranking. Rankings depend only on whether non-USB
// ports are listed and on the preferred VID:PID set; ignore and block lists
// are applied on every read.
type scanKey struct {
	preferred     string
	includeNonUSB bool
}

// keyFor normalises the preferred bridges so that order and case do not
// split the cache.
func keyFor(opts *Options) scanKey {
	preferred := make([]string, 0, len(opts.Preferred))
	for _, p := range opts.Preferred {
		if p = NormalizeVIDPID(p); p != "" {
			preferred = append(preferred, p)
		}
	}
	slices.Sort(preferred)
	return scanKey{
		preferred:     strings.Join(slices.Compact(preferred), ","),
		includeNonUSB: opts.IncludeNonUSB,
	}
}

type ranking struct {
	scanned time.Time
	devices []DeviceInfo
}

type rankingCache struct {
	byKey map[scanKey]ranking
	mu    syncutil.RWMutex
}

var cache = &rankingCache{byKey: make(map[scanKey]ranking)}

// getCached returns a copy of a ranking younger than ttl.
func getCached(key scanKey, ttl time.Duration) ([]DeviceInfo, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	r, ok := cache.byKey[key]
	if !ok || time.Since(r.scanned) > ttl {
		return nil, false
	}
	return slices.Clone(r.devices), true
}

func setCached(key scanKey, devices []DeviceInfo) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.byKey[key] = ranking{scanned: time.Now(), devices: slices.Clone(devices)}
}

func clearCacheFor(key scanKey) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	delete(cache.byKey, key)
}

func clearCache() {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	clear(cache.byKey)
}
