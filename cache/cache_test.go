package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)

	cases := []struct {
		name      string
		liveMax   time.Time
		cachedMax *time.Time
		force     bool
		want      bool
	}{
		{"no metadata", now, nil, false, true},
		{"force always refreshes", earlier, &now, true, true},
		{"newer sync since cache", now, &earlier, false, true},
		{"cache current", now, &now, false, false},
		{"cache newer than live", earlier, &now, false, false},
		{"zero live with metadata", time.Time{}, &now, false, false},
		{"zero live no metadata", time.Time{}, nil, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NeedsRefresh(tc.liveMax, tc.cachedMax, tc.force); got != tc.want {
				t.Errorf("NeedsRefresh(%v, %v, %v) = %v, want %v",
					tc.liveMax, tc.cachedMax, tc.force, got, tc.want)
			}
		})
	}
}

func TestKeyNamespaces(t *testing.T) {
	if got := AgingKey("co-1", ""); got != "aging:co-1" {
		t.Errorf("AgingKey both = %q", got)
	}
	if got := AgingKey("co-1", "customer"); got != "aging:co-1:customer" {
		t.Errorf("AgingKey customer = %q", got)
	}
	if got := ScoresKey("co-1"); got != "scores:co-1" {
		t.Errorf("ScoresKey = %q", got)
	}
	if got := SyncMetaKey("co-1"); got != "syncmeta:co-1" {
		t.Errorf("SyncMetaKey = %q", got)
	}
	if AgingKey("co-1", "customer") == AgingKey("co-2", "customer") {
		t.Error("keys must differ per company")
	}
}

// Redis down (nil client) must degrade to miss/no-op, never error: the read
// path falls through to the store.
func TestNilClientDegrades(t *testing.T) {
	ctx := context.Background()
	c := NewAnalyticsCache(nil, time.Minute, nil)

	var dest map[string]string
	ok, err := c.Get(ctx, "aging:x", &dest)
	if err != nil || ok {
		t.Fatalf("Get on nil client: ok=%v err=%v, want miss with no error", ok, err)
	}

	if err := c.Set(ctx, "aging:x", map[string]string{"a": "b"}, time.Minute); err != nil {
		t.Fatalf("Set on nil client: %v", err)
	}
	if err := c.InvalidateCompany(ctx, "co-1"); err != nil {
		t.Fatalf("InvalidateCompany on nil client: %v", err)
	}

	meta, err := c.GetSyncMeta(ctx, "co-1")
	if err != nil || meta != nil {
		t.Fatalf("GetSyncMeta on nil client: meta=%v err=%v", meta, err)
	}
	if err := c.SetSyncMeta(ctx, "co-1", time.Now()); err != nil {
		t.Fatalf("SetSyncMeta on nil client: %v", err)
	}

	var nilCache *AnalyticsCache
	if nilCache.TTL() != 0 {
		t.Error("nil receiver TTL should be 0")
	}
	nilCache.UseClient(nil)
}

// The server starts handling requests before Redis is connected and attaches
// the client afterwards via UseClient; readers and the swap must be safe to
// run concurrently (run with -race).
func TestUseClientConcurrentWithReads(t *testing.T) {
	ctx := context.Background()
	c := NewAnalyticsCache(nil, time.Minute, nil)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var dest map[string]string
			for {
				select {
				case <-done:
					return
				default:
				}
				if _, err := c.Get(ctx, "aging:co-1", &dest); err != nil {
					t.Errorf("Get during swap: %v", err)
					return
				}
				_ = c.TTL()
				if err := c.Set(ctx, "aging:co-1", map[string]string{"a": "b"}, 0); err != nil {
					t.Errorf("Set during swap: %v", err)
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		c.UseClient(nil)
	}
	close(done)
	wg.Wait()

	if ok, err := c.Get(ctx, "aging:co-1", &map[string]string{}); err != nil || ok {
		t.Fatalf("Get after swaps: ok=%v err=%v, want clientless miss", ok, err)
	}
}
