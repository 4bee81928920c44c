package api

import (
	"testing"
	"time"
)

func TestSlidingLimiterAllowsUpToLimit(t *testing.T) {
	l := NewSlidingLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("u1") {
			t.Fatalf("call %d denied inside quota", i+1)
		}
	}
	if l.Allow("u1") {
		t.Error("call over quota allowed")
	}
}

func TestSlidingLimiterIsPerUser(t *testing.T) {
	l := NewSlidingLimiter(1, time.Minute)

	if !l.Allow("u1") {
		t.Fatal("first call for u1 denied")
	}
	if !l.Allow("u2") {
		t.Error("u2 throttled by u1's quota")
	}
	if l.Allow("u1") {
		t.Error("u1 second call allowed")
	}
}

func TestSlidingLimiterWindowSlides(t *testing.T) {
	l := NewSlidingLimiter(2, 20*time.Millisecond)

	if !l.Allow("u1") || !l.Allow("u1") {
		t.Fatal("quota denied")
	}
	if l.Allow("u1") {
		t.Fatal("over quota allowed")
	}

	time.Sleep(30 * time.Millisecond)
	if !l.Allow("u1") {
		t.Error("call denied after the window slid past old entries")
	}
}
