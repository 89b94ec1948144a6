package identity

import (
	"sync"
	"time"
)

// rateLimiter is a fixed-window per-key attempt counter. It exists so the
// rate-limited error path of the provider is real rather than theoretical;
// it is not meant to survive restarts or coordinate across processes.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*attemptWindow
}

type attemptWindow struct {
	start time.Time
	count int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*attemptWindow),
	}
}

// allow records an attempt for key and reports whether it stays within the
// current window's limit.
func (l *rateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.window {
		l.windows[key] = &attemptWindow{start: now, count: 1}
		return true
	}

	w.count++
	return w.count <= l.limit
}

// reset clears the window for key, used after a successful attempt.
func (l *rateLimiter) reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}
