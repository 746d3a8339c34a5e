// Package input owns everything between a decoded client message and a
// validated effect applied to world state: per-player input sequencing and
// chat rate limiting.
package input

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ChatLimitConfig configures per-player chat throttling.
type ChatLimitConfig struct {
	MessagesPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
}

// DefaultChatLimitConfig throttles chat harder than gameplay input: chat
// floods are a griefing vector, not a latency-sensitive path.
var DefaultChatLimitConfig = ChatLimitConfig{
	MessagesPerSecond: 1,
	Burst:             3,
	CleanupInterval:   5 * time.Minute,
}

type chatLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ChatLimiter rate-limits chat messages per player ID, independent of the
// per-IP connection limiter the admin HTTP surface uses.
type ChatLimiter struct {
	limiters sync.Map // map[string]*chatLimiterEntry
	config   ChatLimitConfig
	stopChan chan struct{}
	stopOnce sync.Once

	rejectedCount uint64 // atomic
	allowedCount  uint64 // atomic
}

// NewChatLimiter creates a ChatLimiter and starts its stale-entry sweep.
func NewChatLimiter(cfg ChatLimitConfig) *ChatLimiter {
	cl := &ChatLimiter{
		config:   cfg,
		stopChan: make(chan struct{}),
	}
	go cl.cleanupLoop()
	return cl
}

// Stop ends the cleanup goroutine.
func (cl *ChatLimiter) Stop() {
	cl.stopOnce.Do(func() { close(cl.stopChan) })
}

func (cl *ChatLimiter) getLimiter(playerID string) *rate.Limiter {
	now := time.Now()

	if entry, ok := cl.limiters.Load(playerID); ok {
		e := entry.(*chatLimiterEntry)
		e.lastSeen = now
		return e.limiter
	}

	entry := &chatLimiterEntry{
		limiter:  rate.NewLimiter(rate.Limit(cl.config.MessagesPerSecond), cl.config.Burst),
		lastSeen: now,
	}
	actual, _ := cl.limiters.LoadOrStore(playerID, entry)
	return actual.(*chatLimiterEntry).limiter
}

// Allow reports whether playerID may send a chat message right now.
func (cl *ChatLimiter) Allow(playerID string) bool {
	if cl.getLimiter(playerID).Allow() {
		atomic.AddUint64(&cl.allowedCount, 1)
		return true
	}
	atomic.AddUint64(&cl.rejectedCount, 1)
	return false
}

func (cl *ChatLimiter) cleanupLoop() {
	ticker := time.NewTicker(cl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cl.stopChan:
			return
		case <-ticker.C:
			cl.cleanup()
		}
	}
}

func (cl *ChatLimiter) cleanup() {
	cutoff := time.Now().Add(-cl.config.CleanupInterval * 2)
	cl.limiters.Range(func(key, value interface{}) bool {
		entry := value.(*chatLimiterEntry)
		if entry.lastSeen.Before(cutoff) {
			cl.limiters.Delete(key)
		}
		return true
	})
}

// Remove drops a player's limiter entry immediately, e.g. on disconnect.
func (cl *ChatLimiter) Remove(playerID string) {
	cl.limiters.Delete(playerID)
}

// Stats reports allow/reject counters for the metrics surface.
type ChatLimitStats struct {
	Allowed  uint64
	Rejected uint64
}

// GetStats returns current counters.
func (cl *ChatLimiter) GetStats() ChatLimitStats {
	return ChatLimitStats{
		Allowed:  atomic.LoadUint64(&cl.allowedCount),
		Rejected: atomic.LoadUint64(&cl.rejectedCount),
	}
}
