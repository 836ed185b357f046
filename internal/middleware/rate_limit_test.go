package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/set-night/fitcoach/internal/domain"
)

func TestLimiterWindow(t *testing.T) {
	l := NewLimiter(3, time.Minute)
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if !l.Allow(1, now.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("message %d rejected", i+1)
		}
	}
	if l.Allow(1, now.Add(10*time.Second)) {
		t.Fatal("fourth message in window allowed")
	}
	if !l.Allow(2, now.Add(10*time.Second)) {
		t.Fatal("other chat affected by limit")
	}
	if !l.Allow(1, now.Add(time.Minute)) {
		t.Fatal("new window still limited")
	}
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !l.Allow(1, time.Now()) {
			t.Fatal("disabled limiter rejected a message")
		}
	}
}

func TestProfileContext(t *testing.T) {
	if GetProfile(context.Background()) != nil {
		t.Fatal("empty context returned a profile")
	}
	p := &domain.Profile{FirstName: "Ana"}
	if got := GetProfile(WithProfile(context.Background(), p)); got != p {
		t.Fatalf("GetProfile() = %v, want %v", got, p)
	}
}
