package ratelimit

import (
	"testing"
)

func TestLimiter_Allow(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.001, Burst: 2})
	if !l.Allow("10.0.0.1") || !l.Allow("10.0.0.1") {
		t.Fatal("burst should admit two requests")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("third request should be throttled")
	}
	if !l.Allow("10.0.0.2") {
		t.Fatal("a different client has its own bucket")
	}
	if n := len(l.limiters); n != 2 {
		t.Fatalf("expected 2 buckets, got %d", n)
	}
}

func TestLimiter_Disabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for i := 0; i < 100; i++ {
		if !l.Allow("") {
			t.Fatalf("request %d throttled with limiting disabled", i)
		}
	}
}

func TestLimiter_EmptyKeySharesBucket(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.001, Burst: 1})
	if !l.Allow("") {
		t.Fatal("first anonymous request should pass")
	}
	if l.Allow("unknown") {
		t.Fatal("an empty key is tracked as unknown")
	}
}
