package cmsblog

import (
	"sync"
	"time"
)

// PreviewLimiter bounds failed preview token checks per IP address.
type PreviewLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	max      int
	window   time.Duration
	done     chan struct{}
	stop     sync.Once
}

// NewPreviewLimiter creates a PreviewLimiter that tolerates max failures
// per window. Call Stop to release its cleanup goroutine.
func NewPreviewLimiter(max int, window time.Duration) *PreviewLimiter {
	l := &PreviewLimiter{
		failures: make(map[string][]time.Time),
		max:      max,
		window:   window,
		done:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *PreviewLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
		}
		cutoff := time.Now().Add(-l.window)
		l.mu.Lock()
		for ip, hits := range l.failures {
			kept := prune(hits, cutoff)
			if len(kept) == 0 {
				delete(l.failures, ip)
			} else {
				l.failures[ip] = kept
			}
		}
		l.mu.Unlock()
	}
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Check returns true if the IP has not exceeded the failure limit.
// It does not record anything; call Record when a check fails.
func (l *PreviewLimiter) Check(ip string) bool {
	cutoff := time.Now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := prune(l.failures[ip], cutoff)
	l.failures[ip] = kept
	return len(kept) < l.max
}

// Record registers a failed preview check for the given IP.
func (l *PreviewLimiter) Record(ip string) {
	l.mu.Lock()
	l.failures[ip] = append(l.failures[ip], time.Now())
	l.mu.Unlock()
}

// Stop ends the background cleanup.
func (l *PreviewLimiter) Stop() {
	l.stop.Do(func() { close(l.done) })
}
