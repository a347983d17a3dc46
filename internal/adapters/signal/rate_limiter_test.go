package signal

import (
	"testing"
	"time"
)

func TestRoomRateLimiter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRoomRateLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }

	if !rl.Allow("u") || !rl.Allow("u") {
		t.Fatal("first two attempts rejected")
	}
	if rl.Allow("u") {
		t.Fatal("third attempt inside the window allowed")
	}
	if !rl.Allow("other") {
		t.Error("limit leaked across users")
	}

	now = now.Add(11 * time.Second)
	if !rl.Allow("u") {
		t.Error("attempt after the window rejected")
	}
}

func TestRoomRateLimiterDisabled(t *testing.T) {
	rl := NewRoomRateLimiter(0, time.Second)
	for i := 0; i < 10; i++ {
		if !rl.Allow("u") {
			t.Fatal("disabled limiter rejected an attempt")
		}
	}
}
