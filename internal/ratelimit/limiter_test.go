package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock returns a limiter whose clock is advanced by the returned func.
func fakeClock(l *Limiter) func(d time.Duration) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.nowFunc = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func TestLimiter_BurstThenReject(t *testing.T) {
	l := NewLimiter(1.0, 3)
	fakeClock(l)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("request after burst should be rejected")
	}
}

func TestLimiter_Refill(t *testing.T) {
	tests := []struct {
		name    string
		rate    float64
		burst   int
		spend   int
		advance time.Duration
		want    bool
	}{
		{"full refill", 10.0, 2, 2, 200 * time.Millisecond, true},
		{"partial refill not enough", 2.0, 1, 1, 250 * time.Millisecond, false},
		{"partial refill with leftover", 2.0, 5, 3, 250 * time.Millisecond, true},
		{"zero rate never refills", 0.0, 2, 2, time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLimiter(tt.rate, tt.burst)
			advance := fakeClock(l)
			for i := 0; i < tt.spend; i++ {
				l.Allow("client")
			}
			advance(tt.advance)
			if got := l.Allow("client"); got != tt.want {
				t.Errorf("Allow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLimiter_RefillCappedAtBurst(t *testing.T) {
	l := NewLimiter(100.0, 3)
	advance := fakeClock(l)

	for i := 0; i < 3; i++ {
		l.Allow("client")
	}
	advance(10 * time.Second)

	allowed := 0
	for i := 0; i < 5; i++ {
		if l.Allow("client") {
			allowed++
		}
	}
	if allowed != 3 {
		t.Errorf("allowed %d after long idle, want burst of 3", allowed)
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter(1.0, 1)
	fakeClock(l)

	l.Allow("192.168.1.10")
	if l.Allow("192.168.1.10") {
		t.Error("first client should be exhausted")
	}
	if !l.Allow("192.168.1.11") {
		t.Error("second client should have its own bucket")
	}
}

func TestLimiter_Prune(t *testing.T) {
	l := NewLimiter(1.0, 5)
	advance := fakeClock(l)

	l.Allow("old")
	advance(10 * time.Minute)
	l.Allow("recent")

	if l.Len() != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", l.Len())
	}
	if removed := l.Prune(5 * time.Minute); removed != 1 {
		t.Errorf("Prune removed %d, want 1", removed)
	}
	if l.Len() != 1 {
		t.Errorf("expected 1 tracked client after prune, got %d", l.Len())
	}

	// A pruned client starts over with a full bucket.
	for i := 0; i < 5; i++ {
		if !l.Allow("old") {
			t.Fatalf("pruned client request %d should be allowed", i+1)
		}
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	l := NewLimiter(0.0, 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("allowed %d concurrent requests, want exactly the burst of 100", allowed)
	}
}

func TestNewToolLimiters(t *testing.T) {
	limiters := NewToolLimiters()

	bursts := map[string]int{
		"foresight_simulate":  5,
		"foresight_battle":    5,
		"foresight_step":      10,
		"foresight_field":     2,
		"foresight_scenarios": 10,
	}
	for tool, burst := range bursts {
		l, ok := limiters[tool]
		if !ok {
			t.Errorf("missing limiter for %s", tool)
			continue
		}
		if l.burst != burst {
			t.Errorf("%s burst = %d, want %d", tool, l.burst, burst)
		}
	}
}

func TestCheckLimit(t *testing.T) {
	limiters := NewToolLimiters()

	if err := CheckLimit(limiters, "unknown_tool"); err != nil {
		t.Errorf("unknown tool should not be limited: %v", err)
	}

	if err := CheckLimit(limiters, "foresight_field"); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	if err := CheckLimit(limiters, "foresight_field"); err != nil {
		t.Fatalf("second call should pass: %v", err)
	}
	err := CheckLimit(limiters, "foresight_field")
	if !errors.Is(err, ErrLimited) {
		t.Errorf("expected ErrLimited after burst, got %v", err)
	}
}
