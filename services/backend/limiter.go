// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the per-client limiter map. When it is full
// the map is reset; a client losing its bucket only gains a fresh burst.
const maxTrackedClients = 10000

// clientLimiter is a token bucket per client key, refilled at perMinute
// requests per minute with a burst of perMinute.
type clientLimiter struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	limit   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

func newClientLimiter(perMinute int, clock clockwork.Clock) *clientLimiter {
	return &clientLimiter{
		clock:   clock,
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow spends one token from key's bucket.
func (l *clientLimiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxTrackedClients {
			l.buckets = make(map[string]*rate.Limiter)
		}
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.AllowN(l.clock.Now(), 1)
}
