package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := NewLimiter(time.Hour, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !l.Allow(ctx, "alice@example.com") {
			t.Fatalf("attempt %d within burst should be allowed", i+1)
		}
	}
	if l.Allow(ctx, "alice@example.com") {
		t.Fatalf("attempt beyond burst should be denied")
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter(time.Hour, 1)
	ctx := context.Background()

	if !l.Allow(ctx, "alice@example.com") {
		t.Fatalf("first key should be allowed")
	}
	if !l.Allow(ctx, "bob@example.com") {
		t.Fatalf("second key should have its own bucket")
	}
}

func TestLimiter_Prune(t *testing.T) {
	l := NewLimiter(time.Hour, 1)
	ctx := context.Background()

	now := time.Now()
	l.lastSeen = func() time.Time { return now }
	l.Allow(ctx, "stale")

	l.lastSeen = func() time.Time { return now.Add(2 * time.Hour) }
	l.Allow(ctx, "fresh")

	if dropped := l.Prune(time.Hour); dropped != 1 {
		t.Fatalf("expected 1 pruned bucket, got %d", dropped)
	}
	if _, ok := l.buckets["fresh"]; !ok {
		t.Fatalf("fresh bucket must survive pruning")
	}
}

func TestAllowAll(t *testing.T) {
	if !(AllowAll{}).Allow(context.Background(), "anyone") {
		t.Fatalf("AllowAll must always allow")
	}
}
