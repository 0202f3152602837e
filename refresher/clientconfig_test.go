package refresher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yllada/vpn-client/api"
)

type fakeConfigSource struct {
	mu      sync.Mutex
	calls   int
	failing bool
}

func (s *fakeConfigSource) FetchClientConfig(ctx context.Context) (*api.ClientConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failing {
		return nil, errors.New("api unavailable")
	}
	return api.NewClientConfigForTest(time.Hour), nil
}

func (s *fakeConfigSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestClientConfigRefresher_EnableFetchesImmediately(t *testing.T) {
	scheduler := NewSchedulerWithInterval(10 * time.Millisecond)
	scheduler.Start()
	defer scheduler.Stop()

	source := &fakeConfigSource{}
	refresher := NewClientConfigRefresher(source, scheduler)

	var updates atomic.Int32
	refresher.OnNewClientConfig(func(*api.ClientConfig) { updates.Add(1) })

	refresher.Enable()
	defer refresher.Disable()

	waitFor(t, "first config update", func() bool { return updates.Load() >= 1 })

	if refresher.Current() == nil {
		t.Error("Current() = nil after successful refresh")
	}
	if !refresher.Enabled() {
		t.Error("Enabled() = false after Enable")
	}
}

func TestClientConfigRefresher_EnableTwiceIsNoOp(t *testing.T) {
	scheduler := NewSchedulerWithInterval(10 * time.Millisecond)
	scheduler.Start()
	defer scheduler.Stop()

	source := &fakeConfigSource{}
	refresher := NewClientConfigRefresher(source, scheduler)

	refresher.Enable()
	defer refresher.Disable()
	waitFor(t, "first fetch", func() bool { return source.callCount() == 1 })

	refresher.Enable()
	time.Sleep(50 * time.Millisecond)

	// The config expires in an hour, so any extra fetch came from the
	// redundant Enable.
	if got := source.callCount(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

func TestClientConfigRefresher_DisableStopsChain(t *testing.T) {
	scheduler := NewSchedulerWithInterval(10 * time.Millisecond)
	scheduler.Start()
	defer scheduler.Stop()

	// Failing source reschedules after the retry interval; Disable must
	// cancel that pending retry.
	source := &fakeConfigSource{failing: true}
	refresher := NewClientConfigRefresher(source, scheduler)

	refresher.Enable()
	waitFor(t, "first attempt", func() bool { return source.callCount() == 1 })

	refresher.Disable()
	waitFor(t, "retry task cancelled", func() bool { return scheduler.Pending() == 0 })

	if refresher.Enabled() {
		t.Error("Enabled() = true after Disable")
	}
	if refresher.Current() != nil {
		t.Error("Current() != nil when every fetch failed")
	}

	// Idempotent.
	refresher.Disable()
}

func TestClientConfigRefresher_FailureKeepsPreviousConfig(t *testing.T) {
	scheduler := NewSchedulerWithInterval(10 * time.Millisecond)
	scheduler.Start()
	defer scheduler.Stop()

	source := &fakeConfigSource{}
	refresher := NewClientConfigRefresher(source, scheduler)

	refresher.Enable()
	defer refresher.Disable()
	waitFor(t, "first fetch", func() bool { return refresher.Current() != nil })
	first := refresher.Current()

	source.mu.Lock()
	source.failing = true
	source.mu.Unlock()

	// Force another refresh cycle directly.
	refresher.refresh()
	waitFor(t, "failed fetch", func() bool { return source.callCount() >= 2 })
	time.Sleep(20 * time.Millisecond)

	if refresher.Current() != first {
		t.Error("failed refresh replaced the held configuration")
	}
}
