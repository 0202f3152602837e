package refresher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/servers"
)

// recordingObserver counts events on the notification goroutine.
type recordingObserver struct {
	mu       sync.Mutex
	loading  int
	updates  []*servers.ServerList
	failures []error
}

func (o *recordingObserver) OnLoadingStarted() {
	o.mu.Lock()
	o.loading++
	o.mu.Unlock()
}

func (o *recordingObserver) OnServerListUpdated(list *servers.ServerList) {
	o.mu.Lock()
	o.updates = append(o.updates, list)
	o.mu.Unlock()
}

func (o *recordingObserver) OnFetchFailed(err error) {
	o.mu.Lock()
	o.failures = append(o.failures, err)
	o.mu.Unlock()
}

func (o *recordingObserver) updateCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.updates)
}

func (o *recordingObserver) failureCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.failures)
}

func (o *recordingObserver) loadingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loading
}

// queueSource returns pre-seeded outcomes in order, repeating the last one
// once the queue is exhausted.
type queueSource struct {
	mu       sync.Mutex
	outcomes []fetchOutcome
	calls    int
}

type fetchOutcome struct {
	list *servers.ServerList
	err  error
}

func (s *queueSource) FetchServerList(ctx context.Context) (*servers.ServerList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	out := s.outcomes[len(s.outcomes)-1]
	if s.calls <= len(s.outcomes) {
		out = s.outcomes[s.calls-1]
	}
	return out.list, out.err
}

func (s *queueSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// manualSource hands out one completion channel per fetch so tests can
// finish fetches in any order.
type manualSource struct {
	mu      sync.Mutex
	pending []chan fetchOutcome
}

func (s *manualSource) FetchServerList(ctx context.Context) (*servers.ServerList, error) {
	ch := make(chan fetchOutcome)
	s.mu.Lock()
	s.pending = append(s.pending, ch)
	s.mu.Unlock()

	out := <-ch
	return out.list, out.err
}

func (s *manualSource) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// finish completes the i-th fetch (in issue order), waiting for it to be
// issued first.
func (s *manualSource) finish(t *testing.T, i int, list *servers.ServerList, err error) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		if i < len(s.pending) {
			ch := s.pending[i]
			s.mu.Unlock()
			ch <- fetchOutcome{list: list, err: err}
			return
		}
		s.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatalf("fetch %d was never issued", i)
		}
		time.Sleep(time.Millisecond)
	}
}

func snapshot(updatedAt int64, names ...string) *servers.ServerList {
	list := make([]servers.LogicalServer, 0, len(names))
	for i, name := range names {
		list = append(list, servers.LogicalServer{
			ID:          name,
			Name:        name,
			ExitCountry: "CH",
			Load:        i,
			Enabled:     true,
		})
	}
	return servers.NewServerList(list, updatedAt)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestServerListRefresher_FirstFetchNotifies(t *testing.T) {
	source := &queueSource{outcomes: []fetchOutcome{{list: snapshot(100, "CH#1")}}}
	refresher := NewServerListRefresher(source, time.Hour)
	observer := &recordingObserver{}
	refresher.RegisterObserver(observer)

	if !refresher.Start() {
		t.Fatal("Start() = false, want true")
	}
	defer refresher.Stop()

	waitFor(t, "first update", func() bool { return observer.updateCount() == 1 })

	if observer.loadingCount() != 1 {
		t.Errorf("loading events = %d, want 1", observer.loadingCount())
	}
	current := refresher.Current()
	if current == nil || current.UpdatedAt() != 100 {
		t.Errorf("Current() = %v, want snapshot with timestamp 100", current)
	}
}

func TestServerListRefresher_StalenessGate(t *testing.T) {
	tests := []struct {
		name        string
		first       int64
		second      int64
		wantUpdates int
	}{
		{"older is discarded", 100, 50, 1},
		{"equal is discarded", 100, 100, 1},
		{"newer is applied", 100, 101, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &queueSource{outcomes: []fetchOutcome{
				{list: snapshot(tt.first, "CH#1")},
				{list: snapshot(tt.second, "CH#1", "CH#2")},
			}}
			refresher := NewServerListRefresher(source, time.Hour)
			observer := &recordingObserver{}
			refresher.RegisterObserver(observer)

			refresher.Start()
			defer refresher.Stop()
			waitFor(t, "first update", func() bool { return observer.updateCount() == 1 })

			result := <-refresher.Fetch()
			if result.Err != nil {
				t.Fatalf("Fetch() returned error: %v", result.Err)
			}

			waitFor(t, "completions to settle", func() bool { return source.callCount() == 2 })
			time.Sleep(20 * time.Millisecond)

			if got := observer.updateCount(); got != tt.wantUpdates {
				t.Errorf("updates = %d, want %d", got, tt.wantUpdates)
			}
			wantHeld := tt.first
			if tt.wantUpdates == 2 {
				wantHeld = tt.second
			}
			if got := refresher.Current().UpdatedAt(); got != wantHeld {
				t.Errorf("held timestamp = %d, want %d", got, wantHeld)
			}
		})
	}
}

func TestServerListRefresher_OutOfOrderCompletions(t *testing.T) {
	source := &manualSource{}
	refresher := NewServerListRefresher(source, time.Hour)
	observer := &recordingObserver{}
	refresher.RegisterObserver(observer)

	refresher.Start()
	defer refresher.Stop()

	// Fetch 0 is the one issued by Start. Issue two more, waiting for
	// each to reach the source so the issue order is deterministic, then
	// complete them newest first so the slow early snapshot arrives last.
	waitFor(t, "initial fetch issued", func() bool { return source.pendingCount() == 1 })
	slow := refresher.Fetch()
	waitFor(t, "slow fetch issued", func() bool { return source.pendingCount() == 2 })
	fast := refresher.Fetch()
	waitFor(t, "fast fetch issued", func() bool { return source.pendingCount() == 3 })

	source.finish(t, 2, snapshot(20, "CH#1", "CH#2"), nil)
	if result := <-fast; result.Err != nil {
		t.Fatalf("fast fetch failed: %v", result.Err)
	}
	waitFor(t, "newest snapshot applied", func() bool { return observer.updateCount() == 1 })

	source.finish(t, 1, snapshot(10, "CH#1"), nil)
	result := <-slow
	if result.Err != nil {
		t.Fatalf("slow fetch failed: %v", result.Err)
	}
	if result.Snapshot.UpdatedAt() != 10 {
		t.Errorf("slow fetch snapshot timestamp = %d, want 10", result.Snapshot.UpdatedAt())
	}

	source.finish(t, 0, snapshot(5, "CH#1"), nil)
	time.Sleep(20 * time.Millisecond)

	if got := observer.updateCount(); got != 1 {
		t.Errorf("updates = %d, want 1 (stale completions must not notify)", got)
	}
	if got := refresher.Current().UpdatedAt(); got != 20 {
		t.Errorf("held timestamp = %d, want 20", got)
	}
}

func TestServerListRefresher_StopDeliversInFlightFetchResult(t *testing.T) {
	for i := 0; i < 20; i++ {
		source := &manualSource{}
		refresher := NewServerListRefresher(source, time.Hour)

		refresher.Start()
		waitFor(t, "initial fetch issued", func() bool { return source.pendingCount() == 1 })

		result := refresher.Fetch()
		waitFor(t, "manual fetch issued", func() bool { return source.pendingCount() == 2 })

		// Release the fetch concurrently with Stop so the completion
		// races the loop shutdown.
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			source.finish(t, 1, snapshot(100, "CH#1"), nil)
		}()
		go func() {
			defer wg.Done()
			refresher.Stop()
		}()

		select {
		case <-result:
		case <-time.After(2 * time.Second):
			t.Fatalf("iteration %d: Fetch result not delivered across Stop", i)
		}

		source.finish(t, 0, snapshot(50, "CH#1"), nil)
		wg.Wait()
	}
}

func TestServerListRefresher_StopHaltsTicksAndRestartFetchesOnce(t *testing.T) {
	source := &queueSource{outcomes: []fetchOutcome{{list: snapshot(100, "CH#1")}}}
	refresher := NewServerListRefresher(source, 200*time.Millisecond)

	refresher.Start()
	waitFor(t, "initial fetch", func() bool { return source.callCount() == 1 })
	refresher.Stop()

	calls := source.callCount()
	time.Sleep(500 * time.Millisecond)
	if got := source.callCount(); got != calls {
		t.Fatalf("fetches after Stop = %d, want %d", got, calls)
	}

	if !refresher.Start() {
		t.Fatal("restart Start() = false, want true")
	}
	defer refresher.Stop()

	waitFor(t, "restart fetch", func() bool { return source.callCount() == calls+1 })
	time.Sleep(50 * time.Millisecond)
	if got := source.callCount(); got != calls+1 {
		t.Errorf("fetches shortly after restart = %d, want exactly %d", got, calls+1)
	}
}

func TestServerListRefresher_StartWhileRunningIsNoOp(t *testing.T) {
	source := &queueSource{outcomes: []fetchOutcome{{list: snapshot(100, "CH#1")}}}
	refresher := NewServerListRefresher(source, time.Hour)

	refresher.Start()
	defer refresher.Stop()
	waitFor(t, "initial fetch", func() bool { return source.callCount() == 1 })

	if refresher.Start() {
		t.Error("second Start() = true, want false")
	}
	time.Sleep(50 * time.Millisecond)
	if got := source.callCount(); got != 1 {
		t.Errorf("fetches = %d, want 1 (no extra fetch from redundant Start)", got)
	}
}

func TestServerListRefresher_FailureKeepsSnapshotAndSchedule(t *testing.T) {
	fetchErr := common.WrapError(common.ErrAPIUnreachable, "connection refused")
	source := &queueSource{outcomes: []fetchOutcome{
		{list: snapshot(100, "CH#1")},
		{err: fetchErr},
		{list: snapshot(200, "CH#1", "CH#2")},
	}}
	refresher := NewServerListRefresher(source, 100*time.Millisecond)
	observer := &recordingObserver{}
	refresher.RegisterObserver(observer)

	refresher.Start()
	defer refresher.Stop()

	waitFor(t, "failure notification", func() bool { return observer.failureCount() == 1 })
	if !errors.Is(observer.failures[0], common.ErrAPIUnreachable) {
		t.Errorf("failure = %v, want ErrAPIUnreachable", observer.failures[0])
	}

	// The held snapshot survives the failure.
	if got := refresher.Current().UpdatedAt(); got != 100 {
		t.Errorf("held timestamp after failure = %d, want 100", got)
	}

	// And the schedule keeps ticking: the next attempt succeeds.
	waitFor(t, "recovery", func() bool { return observer.updateCount() == 2 })
	if got := refresher.Current().UpdatedAt(); got != 200 {
		t.Errorf("held timestamp after recovery = %d, want 200", got)
	}
}

func TestServerListRefresher_FetchWhileStopped(t *testing.T) {
	source := &queueSource{outcomes: []fetchOutcome{{list: snapshot(100, "CH#1")}}}
	refresher := NewServerListRefresher(source, time.Hour)

	result := <-refresher.Fetch()
	if !errors.Is(result.Err, common.ErrNotRunning) {
		t.Errorf("Fetch() while stopped = %v, want ErrNotRunning", result.Err)
	}
	if source.callCount() != 0 {
		t.Errorf("fetches = %d, want 0", source.callCount())
	}
}

func TestServerListRefresher_PrimeSeedsStalenessGate(t *testing.T) {
	source := &queueSource{outcomes: []fetchOutcome{
		{list: snapshot(50, "CH#1")},
		{list: snapshot(150, "CH#1", "CH#2")},
	}}
	refresher := NewServerListRefresher(source, time.Hour)
	observer := &recordingObserver{}
	refresher.RegisterObserver(observer)

	refresher.Prime(snapshot(100, "CH#1"))
	if got := refresher.Current().UpdatedAt(); got != 100 {
		t.Fatalf("Current() after Prime = %d, want 100", got)
	}

	refresher.Start()
	defer refresher.Stop()

	// The initial fetch is older than the primed snapshot and must be
	// discarded; a later one passes.
	waitFor(t, "initial fetch", func() bool { return source.callCount() == 1 })
	time.Sleep(20 * time.Millisecond)
	if got := observer.updateCount(); got != 0 {
		t.Fatalf("updates after stale fetch = %d, want 0", got)
	}
	if got := observer.loadingCount(); got != 0 {
		t.Errorf("loading events = %d, want 0 when primed", got)
	}

	<-refresher.Fetch()
	waitFor(t, "fresh snapshot", func() bool { return observer.updateCount() == 1 })
	if got := refresher.Current().UpdatedAt(); got != 150 {
		t.Errorf("held timestamp = %d, want 150", got)
	}
}

func TestServerListRefresher_StopIsIdempotent(t *testing.T) {
	source := &queueSource{outcomes: []fetchOutcome{{list: snapshot(100, "CH#1")}}}
	refresher := NewServerListRefresher(source, time.Hour)

	refresher.Stop()

	refresher.Start()
	refresher.Stop()
	refresher.Stop()

	if refresher.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}
