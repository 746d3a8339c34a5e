package input

import (
	"testing"
	"time"
)

func TestChatLimiterAllowsUpToBurstThenRejects(t *testing.T) {
	cl := NewChatLimiter(ChatLimitConfig{MessagesPerSecond: 1, Burst: 3, CleanupInterval: time.Minute})
	defer cl.Stop()

	for i := 0; i < 3; i++ {
		if !cl.Allow("p1") {
			t.Fatalf("expected message %d within burst to be allowed", i)
		}
	}
	if cl.Allow("p1") {
		t.Error("expected message beyond burst to be rejected")
	}

	stats := cl.GetStats()
	if stats.Allowed != 3 || stats.Rejected != 1 {
		t.Errorf("expected allowed=3 rejected=1, got %+v", stats)
	}
}

func TestChatLimiterTracksPlayersIndependently(t *testing.T) {
	cl := NewChatLimiter(ChatLimitConfig{MessagesPerSecond: 1, Burst: 1, CleanupInterval: time.Minute})
	defer cl.Stop()

	if !cl.Allow("a") {
		t.Fatal("expected first message from player a to be allowed")
	}
	if !cl.Allow("b") {
		t.Error("expected player b's limiter to be independent of player a's")
	}
}

func TestChatLimiterRemoveDropsEntry(t *testing.T) {
	cl := NewChatLimiter(ChatLimitConfig{MessagesPerSecond: 1, Burst: 1, CleanupInterval: time.Minute})
	defer cl.Stop()

	cl.Allow("p1")
	cl.Remove("p1")

	if _, ok := cl.limiters.Load("p1"); ok {
		t.Error("expected limiter entry to be removed")
	}
}

func TestChatLimiterRefillsOverTime(t *testing.T) {
	cl := NewChatLimiter(ChatLimitConfig{MessagesPerSecond: 100, Burst: 1, CleanupInterval: time.Minute})
	defer cl.Stop()

	if !cl.Allow("p1") {
		t.Fatal("expected first message to be allowed")
	}
	time.Sleep(20 * time.Millisecond)
	if !cl.Allow("p1") {
		t.Error("expected the limiter to refill and allow a subsequent message")
	}
}
