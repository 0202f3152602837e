package reconnector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/refresher"
	"github.com/yllada/vpn-client/servers"
)

// taskScheduler is the slice of the scheduler the reconnector needs.
type taskScheduler interface {
	RunAfter(delay time.Duration, fn func()) int
	Cancel(id int)
}

// snapshotSource provides the latest server list snapshot, typically the
// server list refresher.
type snapshotSource interface {
	Current() *servers.ServerList
}

// Reconnector implements the auto reconnect feature: when the VPN
// connection drops it schedules reconnection attempts with exponentially
// increasing delays, and it retries immediately when network connectivity
// or the user session comes back.
type Reconnector struct {
	connector common.VPNConnector
	snapshots snapshotSource
	scheduler taskScheduler
	backoff   refresher.BackoffPolicy

	vpnMonitor     *VPNMonitor
	networkMonitor *NetworkMonitor
	sessionMonitor *SessionMonitor

	mu           sync.Mutex
	enabled      bool
	dropped      bool
	retryCounter int
	retryTaskID  int
	retryPending bool
}

// NewReconnector wires the reconnector to its collaborators. The monitors
// are owned by the reconnector from this point on; their callbacks must
// not be reassigned.
func NewReconnector(
	connector common.VPNConnector,
	snapshots snapshotSource,
	scheduler taskScheduler,
	backoff refresher.BackoffPolicy,
	vpnMonitor *VPNMonitor,
	networkMonitor *NetworkMonitor,
	sessionMonitor *SessionMonitor,
) *Reconnector {
	r := &Reconnector{
		connector:      connector,
		snapshots:      snapshots,
		scheduler:      scheduler,
		backoff:        backoff,
		vpnMonitor:     vpnMonitor,
		networkMonitor: networkMonitor,
		sessionMonitor: sessionMonitor,
	}

	vpnMonitor.OnDrop = r.onVPNDrop
	vpnMonitor.OnUp = r.onVPNUp
	networkMonitor.OnNetworkUp = r.onNetworkUp
	sessionMonitor.OnSessionUnlocked = r.onSessionUnlocked
	return r
}

// Enable turns the auto reconnect feature on.
func (r *Reconnector) Enable() error {
	r.mu.Lock()
	if r.enabled {
		r.mu.Unlock()
		return nil
	}
	r.enabled = true
	r.mu.Unlock()

	r.resetRetryCounter()
	r.vpnMonitor.Enable()
	if err := r.networkMonitor.Enable(); err != nil {
		common.LogWarn("Network monitoring unavailable: %v", err)
	}
	if err := r.sessionMonitor.Enable(); err != nil {
		common.LogWarn("Session monitoring unavailable: %v", err)
	}
	common.LogInfo("VPN reconnector enabled.")
	return nil
}

// Disable turns the auto reconnect feature off and cancels any pending
// reconnection attempt.
func (r *Reconnector) Disable() {
	r.mu.Lock()
	if !r.enabled {
		r.mu.Unlock()
		return
	}
	r.enabled = false
	r.mu.Unlock()

	r.vpnMonitor.Disable()
	r.networkMonitor.Disable()
	r.sessionMonitor.Disable()
	r.resetRetryCounter()
	common.LogInfo("VPN reconnector disabled.")
}

// IsReconnectionScheduled reports whether a reconnection attempt is
// currently pending.
func (r *Reconnector) IsReconnectionScheduled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryPending
}

// RetryCounter returns the number of reconnection attempts made since the
// last successful connection.
func (r *Reconnector) RetryCounter() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryCounter
}

func (r *Reconnector) onVPNDrop(err error) {
	common.LogInfo("VPN connection drop was detected.")

	r.mu.Lock()
	r.dropped = true
	r.mu.Unlock()

	if isFatalConnectionError(err) {
		common.LogWarn("VPN reconnection not possible: %v", err)
		return
	}
	r.scheduleReconnection()
}

func (r *Reconnector) onVPNUp() {
	common.LogDebug("VPN connection is up.")
	r.mu.Lock()
	r.dropped = false
	r.mu.Unlock()
	r.resetRetryCounter()
}

func (r *Reconnector) onNetworkUp() {
	common.LogInfo("Network connectivity was detected.")
	r.retryIfDropped()
}

func (r *Reconnector) onSessionUnlocked() {
	common.LogInfo("Session unlocked.")
	r.retryIfDropped()
}

// retryIfDropped resets the backoff and schedules an immediate retry
// round, but only when the connection actually dropped.
func (r *Reconnector) retryIfDropped() {
	r.resetRetryCounter()

	r.mu.Lock()
	dropped := r.dropped
	r.mu.Unlock()

	if !dropped {
		common.LogDebug("VPN reconnection not necessary: connection didn't drop.")
		return
	}
	r.scheduleReconnection()
}

// scheduleReconnection schedules the next reconnection attempt. The delay
// grows exponentially with the number of failed attempts. Returns false
// when an attempt is already pending.
func (r *Reconnector) scheduleReconnection() bool {
	r.mu.Lock()
	if !r.enabled || r.retryPending {
		r.mu.Unlock()
		if r.retryPending {
			common.LogWarn("There is already a scheduled VPN reconnection attempt.")
		}
		return false
	}
	attempt := r.retryCounter

	delay, err := r.backoff.Delay(attempt)
	if err != nil {
		r.mu.Unlock()
		common.LogError("Could not compute reconnection delay: %v", err)
		return false
	}

	r.retryPending = true
	r.retryTaskID = r.scheduler.RunAfter(delay, r.reconnect)
	r.mu.Unlock()

	common.LogInfo("Reconnection attempt #%d scheduled in %.2f seconds.", attempt, delay.Seconds())
	return true
}

// reconnect runs one reconnection attempt on the scheduler goroutine.
func (r *Reconnector) reconnect() {
	r.mu.Lock()
	r.retryPending = false
	attempt := r.retryCounter
	r.retryCounter++
	r.mu.Unlock()

	common.LogInfo("Reconnecting (attempt #%d)...", attempt)

	if !r.networkMonitor.IsNetworkUp() {
		common.LogInfo("VPN reconnection not possible: network is down.")
		r.scheduleReconnection()
		return
	}
	if !r.sessionMonitor.IsSessionUnlocked() {
		common.LogInfo("VPN reconnection not possible: session is locked.")
		r.scheduleReconnection()
		return
	}

	serverID := r.connector.CurrentServerID()
	list := r.snapshots.Current()
	found := false
	if list != nil {
		_, found = list.GetByID(serverID)
	}
	if !found {
		// The server was removed from the server list after the user had
		// connected to it.
		common.LogWarn("VPN reconnection not possible: logical server not found (id = %s)", serverID)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), common.ConnectionTimeout)
		defer cancel()

		if err := r.connector.Connect(ctx, serverID); err != nil {
			common.LogWarn("Reconnection attempt #%d failed: %v", attempt, err)
			if !isFatalConnectionError(err) {
				r.scheduleReconnection()
			}
			return
		}
	}()
}

// resetRetryCounter cancels any pending attempt and starts the backoff
// sequence over.
func (r *Reconnector) resetRetryCounter() {
	r.mu.Lock()
	pending := r.retryPending
	taskID := r.retryTaskID
	r.retryPending = false
	r.retryCounter = 0
	r.mu.Unlock()

	if pending {
		r.scheduler.Cancel(taskID)
	}
}

// isFatalConnectionError reports whether reconnecting cannot help, for
// example because the session was rejected.
func isFatalConnectionError(err error) bool {
	return errors.Is(err, common.ErrSessionExpired) ||
		errors.Is(err, common.ErrNotLoggedIn) ||
		errors.Is(err, common.ErrInvalidSessionID)
}
