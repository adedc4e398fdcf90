package flood

import (
	"testing"
	"time"
)

func TestFloodgate_Allow_NormalUsage(t *testing.T) {
	fg := New(3) // 3 requests per minute
	defer fg.Stop()

	// Should allow first 3 requests
	for i := 0; i < 3; i++ {
		if !fg.Allow("client1") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	// 4th request should be blocked
	if fg.Allow("client1") {
		t.Error("4th request should be blocked")
	}
}

func TestFloodgate_Allow_SlidingWindow(t *testing.T) {
	fg := New(2) // 2 requests per minute
	defer fg.Stop()

	if !fg.Allow("client1") {
		t.Error("First request should be allowed")
	}
	if !fg.Allow("client1") {
		t.Error("Second request should be allowed")
	}
	if fg.Allow("client1") {
		t.Error("Third request should be blocked")
	}

	// Manually adjust timestamps to simulate time passing
	fg.mutex.Lock()
	if entry, exists := fg.entries["client1"]; exists {
		// Move timestamps back by 61 seconds to simulate window expiry
		pastTime := time.Now().Add(-61 * time.Second)
		for i := range entry.timestamps {
			entry.timestamps[i] = pastTime
		}
	}
	fg.mutex.Unlock()

	// Should allow requests again after simulated window slide
	if !fg.Allow("client1") {
		t.Error("Request after window slide should be allowed")
	}
}

func TestFloodgate_Allow_PerClient(t *testing.T) {
	fg := New(2) // 2 requests per minute
	defer fg.Stop()

	// Different clients have separate limits
	for i := 0; i < 2; i++ {
		if !fg.Allow("client1") {
			t.Errorf("Request %d from client1 should be allowed", i+1)
		}
		if !fg.Allow("client2") {
			t.Errorf("Request %d from client2 should be allowed", i+1)
		}
	}

	// Both clients should now be at their limits
	if fg.Allow("client1") {
		t.Error("Extra request from client1 should be blocked")
	}
	if fg.Allow("client2") {
		t.Error("Extra request from client2 should be blocked")
	}
}

func TestFloodgate_GetStats(t *testing.T) {
	fg := New(5)
	defer fg.Stop()

	stats := fg.GetStats()
	if stats.ActiveClients != 0 {
		t.Errorf("Expected 0 active clients initially, got %d", stats.ActiveClients)
	}
	if stats.LimitPerMinute != 5 {
		t.Errorf("Expected limit per minute 5, got %d", stats.LimitPerMinute)
	}
	if stats.WindowSeconds != 60 {
		t.Errorf("Expected window seconds 60, got %d", stats.WindowSeconds)
	}

	fg.Allow("client1")
	fg.Allow("client2")
	fg.Allow("client3")

	stats = fg.GetStats()
	if stats.ActiveClients != 3 {
		t.Errorf("Expected 3 active clients, got %d", stats.ActiveClients)
	}
}

func TestFloodgate_EdgeCases(t *testing.T) {
	t.Run("Zero limit", func(t *testing.T) {
		fg := New(0)
		defer fg.Stop()

		// All requests should be blocked with zero limit
		if fg.Allow("client1") {
			t.Error("Request should be blocked with zero limit")
		}
	})

	t.Run("Empty identifier", func(t *testing.T) {
		fg := New(1)
		defer fg.Stop()

		// Should handle empty strings gracefully
		if !fg.Allow("") {
			t.Error("Should allow request with empty identifier")
		}
		if fg.Allow("") {
			t.Error("Second request with empty identifier should be blocked")
		}
	})
}

func TestFloodgate_Cleanup(t *testing.T) {
	fg := New(1)
	defer fg.Stop()

	fg.Allow("client1")
	fg.Allow("client2")

	// Trigger manual cleanup (this would normally happen in background)
	fg.performCleanup()

	// Should still work after cleanup
	if !fg.Allow("client3") {
		t.Error("Should work after cleanup")
	}
}

func TestFloodgate_ConcurrentAccess(t *testing.T) {
	fg := New(10)
	defer fg.Stop()

	done := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 5; j++ {
				fg.Allow("client1")
				fg.GetStats()
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	stats := fg.GetStats()
	if stats.ActiveClients < 0 {
		t.Error("Stats should be valid after concurrent access")
	}
}
