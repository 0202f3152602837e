package refresher

import (
	"context"
	"sync"
	"time"

	"github.com/yllada/vpn-client/api"
	"github.com/yllada/vpn-client/common"
)

// ClientConfigSource is the asynchronous source of client configurations.
type ClientConfigSource interface {
	FetchClientConfig(ctx context.Context) (*api.ClientConfig, error)
}

// ClientConfigRefresher keeps the VPN client configuration up to date.
//
// Unlike the server list, the client configuration carries its own expiry,
// so instead of a fixed ticker each successful fetch schedules the next
// one at the moment the configuration expires. Failed fetches retry after
// common.ClientConfigRetryInterval.
type ClientConfigRefresher struct {
	source    ClientConfigSource
	scheduler *Scheduler

	mu       sync.Mutex
	enabled  bool
	taskID   int
	current  *api.ClientConfig
	onUpdate []func(*api.ClientConfig)
}

// NewClientConfigRefresher creates a refresher scheduling its fetches on
// the given scheduler.
func NewClientConfigRefresher(source ClientConfigSource, scheduler *Scheduler) *ClientConfigRefresher {
	return &ClientConfigRefresher{
		source:    source,
		scheduler: scheduler,
	}
}

// OnNewClientConfig registers a callback invoked after every successful
// refresh.
func (r *ClientConfigRefresher) OnNewClientConfig(fn func(*api.ClientConfig)) {
	r.mu.Lock()
	r.onUpdate = append(r.onUpdate, fn)
	r.mu.Unlock()
}

// Current returns the latest fetched configuration, or nil.
func (r *ClientConfigRefresher) Current() *api.ClientConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Enabled returns whether the refresher has been enabled.
func (r *ClientConfigRefresher) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Enable starts refreshing the client configuration, fetching immediately.
// Enabling an enabled refresher is a no-op.
func (r *ClientConfigRefresher) Enable() {
	r.mu.Lock()
	if r.enabled {
		r.mu.Unlock()
		return
	}
	r.enabled = true
	r.mu.Unlock()

	common.LogInfo("Client config refresher enabled.")
	r.scheduleNext(0)
}

// Disable stops refreshing the client configuration. Idempotent.
func (r *ClientConfigRefresher) Disable() {
	r.mu.Lock()
	if !r.enabled {
		r.mu.Unlock()
		return
	}
	r.enabled = false
	taskID := r.taskID
	r.mu.Unlock()

	r.scheduler.Cancel(taskID)
	common.LogInfo("Client config refresher disabled.")
}

// refresh fetches the new client configuration and schedules the next
// refresh: at the configuration's expiry on success, after the fallback
// retry interval on failure. A failed fetch never breaks the chain.
func (r *ClientConfigRefresher) refresh() {
	if !r.Enabled() {
		return
	}

	go func() {
		config, err := r.source.FetchClientConfig(context.Background())

		nextDelay := common.ClientConfigRetryInterval
		if err != nil {
			common.LogWarn("Client config update failed: %v", err)
		} else {
			nextDelay = config.SecondsUntilExpiration()

			r.mu.Lock()
			r.current = config
			callbacks := make([]func(*api.ClientConfig), len(r.onUpdate))
			copy(callbacks, r.onUpdate)
			r.mu.Unlock()

			for _, fn := range callbacks {
				fn(config)
			}
		}

		r.scheduleNext(nextDelay)
	}()
}

func (r *ClientConfigRefresher) scheduleNext(delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	r.taskID = r.scheduler.RunAfter(delay, r.refresh)
	common.LogInfo("Next client config refresh scheduled in %v", delay)
}
