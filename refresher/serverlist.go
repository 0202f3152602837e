package refresher

import (
	"context"
	"sync"
	"time"

	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/servers"
)

// DataSource is the asynchronous source of server list snapshots,
// typically the API client.
type DataSource interface {
	FetchServerList(ctx context.Context) (*servers.ServerList, error)
}

// ServerListObserver receives server list events. All callbacks are
// invoked on the refresher's notification goroutine, in registration
// order, and never concurrently.
type ServerListObserver interface {
	// OnLoadingStarted is emitted when a fetch begins and there is no
	// snapshot to show yet.
	OnLoadingStarted()
	// OnServerListUpdated is emitted at most once per accepted fetch,
	// never for stale or failed ones.
	OnServerListUpdated(list *servers.ServerList)
	// OnFetchFailed is emitted when a fetch attempt fails.
	OnFetchFailed(err error)
}

// FetchResult is the completion of one fetch requested through Fetch.
type FetchResult struct {
	// Snapshot is the fetched server list. It is set even when the
	// snapshot was discarded as stale; staleness only suppresses
	// state changes and notifications.
	Snapshot *servers.ServerList
	// Err is the fetch failure, if any.
	Err error
}

// ServerListRefresher periodically fetches the server list from its data
// source and notifies observers only when the fetched data is strictly
// newer than what is currently held.
//
// All state mutation and observer dispatch happen on a single notification
// goroutine. Fetches run concurrently, but their completions are marshaled
// back onto that goroutine and applied in arrival order; the
// strictly-greater timestamp gate is what makes that safe when a slow
// earlier request completes after a faster later one.
type ServerListRefresher struct {
	source   DataSource
	interval time.Duration

	mu        sync.Mutex
	running   bool
	stopChan  chan struct{}
	done      chan struct{}
	calls     chan func()
	fetches   sync.WaitGroup
	observers []ServerListObserver

	// lastApplied and current are mutated only on the notification
	// goroutine; the mutex makes them readable from the outside.
	lastApplied int64
	current     *servers.ServerList
}

// NewServerListRefresher creates a refresher polling the source at the
// given interval. A zero interval means common.ServerReloadInterval.
func NewServerListRefresher(source DataSource, interval time.Duration) *ServerListRefresher {
	if interval <= 0 {
		interval = common.ServerReloadInterval
	}
	return &ServerListRefresher{
		source:   source,
		interval: interval,
	}
}

// RegisterObserver adds an observer. Observers are notified in
// registration order.
func (r *ServerListRefresher) RegisterObserver(observer ServerListObserver) {
	r.mu.Lock()
	r.observers = append(r.observers, observer)
	r.mu.Unlock()
}

// Prime seeds the refresher with a previously cached snapshot so the UI
// has data before the first fetch completes. It must be called before
// Start; the snapshot passes through the same staleness gate as fetched
// ones but does not notify observers.
func (r *ServerListRefresher) Prime(list *servers.ServerList) {
	if list == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	if list.UpdatedAt() > r.lastApplied {
		r.current = list
		r.lastApplied = list.UpdatedAt()
	}
}

// Current returns the currently held snapshot, or nil before the first
// accepted fetch.
func (r *ServerListRefresher) Current() *servers.ServerList {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// IsRunning returns whether the refresher is currently running.
func (r *ServerListRefresher) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start triggers one immediate fetch and schedules a recurring fetch at
// the configured interval. Calling Start while running is a no-op; the
// return value reports whether the refresher was started by this call.
func (r *ServerListRefresher) Start() bool {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return false
	}
	r.running = true
	r.stopChan = make(chan struct{})
	r.done = make(chan struct{})
	r.calls = make(chan func(), 16)
	r.mu.Unlock()

	common.LogInfo("Server list refresher started (interval: %v)", r.interval)

	go r.runLoop()

	// The immediate fetch goes through the notification goroutine like
	// everything else.
	r.calls <- func() { r.beginFetch(nil) }
	return true
}

// Stop cancels the recurring schedule. It is idempotent, and when it
// returns no further tick can fire. In-flight fetches are not cancelled;
// their late completions are discarded by the staleness gate on a later
// run, or dropped entirely while stopped.
func (r *ServerListRefresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		common.LogDebug("Server list refresher is not running. There is nothing to do.")
		return
	}
	r.running = false
	close(r.stopChan)
	done := r.done
	r.mu.Unlock()

	<-done
	common.LogInfo("Server list refresher stopped")
}

// Fetch triggers one asynchronous fetch immediately, independent of the
// schedule. The returned channel delivers exactly one FetchResult. The
// refresher must be running; otherwise the result carries
// common.ErrNotRunning.
func (r *ServerListRefresher) Fetch() <-chan FetchResult {
	out := make(chan FetchResult, 1)

	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		out <- FetchResult{Err: common.ErrNotRunning}
		return out
	}
	calls, stopChan := r.calls, r.stopChan
	r.mu.Unlock()

	select {
	case calls <- func() { r.beginFetch(out) }:
		// If the refresher stops before the closure runs, the shutdown
		// drain still runs it and it reports ErrNotRunning.
	case <-stopChan:
		out <- FetchResult{Err: common.ErrNotRunning}
	}
	return out
}

// runLoop is the notification goroutine: the single context on which
// state is mutated and observers are called.
func (r *ServerListRefresher) runLoop() {
	r.mu.Lock()
	stopChan, done, calls := r.stopChan, r.done, r.calls
	r.mu.Unlock()

	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			r.drainCalls(calls)
			return
		case <-ticker.C:
			r.beginFetch(nil)
		case fn := <-calls:
			fn()
		}
	}
}

// drainCalls runs queued calls until every in-flight fetch has resolved,
// so no Fetch caller is left waiting on a result enqueued during
// shutdown. With running unset the queued calls only deliver results;
// state and observers stay untouched.
func (r *ServerListRefresher) drainCalls(calls chan func()) {
	fetchesDone := make(chan struct{})
	go func() {
		r.fetches.Wait()
		close(fetchesDone)
	}()

	for {
		select {
		case fn := <-calls:
			fn()
		case <-fetchesDone:
			for {
				select {
				case fn := <-calls:
					fn()
				default:
					return
				}
			}
		}
	}
}

// beginFetch issues one asynchronous request. Runs on the notification
// goroutine.
func (r *ServerListRefresher) beginFetch(out chan<- FetchResult) {
	r.mu.Lock()
	if !r.running {
		// Enqueued before Stop, drained after it.
		r.mu.Unlock()
		deliver(out, nil, common.ErrNotRunning)
		return
	}
	loading := r.current == nil
	calls, stopChan := r.calls, r.stopChan
	r.fetches.Add(1)
	r.mu.Unlock()

	if loading {
		r.dispatch(func(o ServerListObserver) { o.OnLoadingStarted() })
	}

	go func() {
		defer r.fetches.Done()

		list, err := r.source.FetchServerList(context.Background())
		completion := func() { r.complete(list, err, out) }

		select {
		case calls <- completion:
			// Either the loop runs it, or the shutdown drain does.
		case <-stopChan:
			// The refresher stopped while the fetch was in flight. The
			// caller still gets its result; state is left untouched.
			deliver(out, list, err)
		}
	}()
}

// complete applies one fetch completion. Runs on the notification
// goroutine; completions are applied in the order they arrive here, not
// the order their fetches were issued.
func (r *ServerListRefresher) complete(list *servers.ServerList, err error, out chan<- FetchResult) {
	defer deliver(out, list, err)

	r.mu.Lock()
	running := r.running
	r.mu.Unlock()
	if !running {
		// Completion drained during shutdown: the caller gets its
		// result, state and observers stay untouched.
		return
	}

	if err != nil {
		common.LogWarn("Server list refresh failed: %v", err)
		r.dispatch(func(o ServerListObserver) { o.OnFetchFailed(err) })
		return
	}

	r.mu.Lock()
	stale := list.UpdatedAt() <= r.lastApplied
	if !stale {
		r.current = list
		r.lastApplied = list.UpdatedAt()
	}
	r.mu.Unlock()

	if stale {
		common.LogDebug("Skipping server list reload because it's already up to date.")
		return
	}

	common.LogInfo("Server list updated (%d servers, timestamp %d)", list.Len(), list.UpdatedAt())
	r.dispatch(func(o ServerListObserver) { o.OnServerListUpdated(list) })
}

// dispatch calls fn for every registered observer, in order. Runs on the
// notification goroutine.
func (r *ServerListRefresher) dispatch(fn func(ServerListObserver)) {
	r.mu.Lock()
	observers := make([]ServerListObserver, len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()

	for _, o := range observers {
		fn(o)
	}
}

func deliver(out chan<- FetchResult, list *servers.ServerList, err error) {
	if out == nil {
		return
	}
	out <- FetchResult{Snapshot: list, Err: err}
}
