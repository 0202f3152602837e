// Package vpn provides VPN connection management functionality.
// The Controller type drives an external tunnel command and tracks the
// resulting connection state.
package vpn

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/yllada/vpn-client/common"
)

// serverPlaceholder in a tunnel command is replaced with the logical
// server ID being connected to.
const serverPlaceholder = "{server}"

// Controller establishes and terminates VPN connections by running the
// configured tunnel commands. It implements common.VPNConnector and
// reports every status transition to registered callbacks, which is how
// the reconnector and the UI observe the connection.
type Controller struct {
	connectCmd    []string
	disconnectCmd []string

	mu        sync.RWMutex
	status    common.ConnectionStatus
	serverID  string
	startTime time.Time
	lastErr   error
	callbacks []func(status common.ConnectionStatus, err error)
}

// NewController creates a controller running the given commands to bring
// the tunnel up and down. Empty commands make the controller track state
// transitions without driving a real tunnel.
func NewController(connectCmd, disconnectCmd []string) *Controller {
	return &Controller{
		connectCmd:    connectCmd,
		disconnectCmd: disconnectCmd,
		status:        common.StatusDisconnected,
	}
}

// OnStatusChange registers a callback invoked on every status
// transition. err is non-nil only for error transitions.
func (c *Controller) OnStatusChange(fn func(status common.ConnectionStatus, err error)) {
	c.mu.Lock()
	c.callbacks = append(c.callbacks, fn)
	c.mu.Unlock()
}

// Status returns the current connection status.
func (c *Controller) Status() common.ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// CurrentServerID returns the ID of the server of the current or last
// connection, or the empty string if there was none.
func (c *Controller) CurrentServerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverID
}

// ConnectedSince returns when the current connection was established,
// or the zero time when disconnected.
func (c *Controller) ConnectedSince() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.status != common.StatusConnected {
		return time.Time{}
	}
	return c.startTime
}

// LastError returns the error of the last failed transition, or nil.
func (c *Controller) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Connect establishes a VPN connection to the server with the given ID.
// Connecting while a connection is active returns
// common.ErrAlreadyConnected.
func (c *Controller) Connect(ctx context.Context, serverID string) error {
	c.mu.Lock()
	if c.status == common.StatusConnected || c.status == common.StatusConnecting {
		c.mu.Unlock()
		return common.ErrAlreadyConnected
	}
	c.serverID = serverID
	c.mu.Unlock()

	c.transition(common.StatusConnecting, nil)
	common.LogInfo("Connecting to server %s...", serverID)

	if err := c.runCommand(ctx, c.connectCmd, serverID); err != nil {
		wrapped := fmt.Errorf("%w: %v", common.ErrConnectionFailed, err)
		c.transition(common.StatusError, wrapped)
		return wrapped
	}

	c.mu.Lock()
	c.startTime = time.Now()
	c.mu.Unlock()

	c.transition(common.StatusConnected, nil)
	common.LogInfo("Connected to server %s.", serverID)
	return nil
}

// Disconnect terminates the current VPN connection. Disconnecting
// without an active connection returns common.ErrNotConnected.
func (c *Controller) Disconnect() error {
	c.mu.RLock()
	status := c.status
	serverID := c.serverID
	c.mu.RUnlock()

	if status != common.StatusConnected && status != common.StatusConnecting {
		return common.ErrNotConnected
	}

	c.transition(common.StatusDisconnecting, nil)
	common.LogInfo("Disconnecting from server %s...", serverID)

	ctx, cancel := context.WithTimeout(context.Background(), common.ConnectionTimeout)
	defer cancel()

	if err := c.runCommand(ctx, c.disconnectCmd, serverID); err != nil {
		wrapped := fmt.Errorf("%w: %v", common.ErrConnectionFailed, err)
		c.transition(common.StatusError, wrapped)
		return wrapped
	}

	c.transition(common.StatusDisconnected, nil)
	common.LogInfo("Disconnected.")
	return nil
}

// ReportDrop marks the connection as dropped. The tunnel watchdog calls
// it when the tunnel dies outside of Connect and Disconnect.
func (c *Controller) ReportDrop(err error) {
	c.transition(common.StatusError, err)
}

// runCommand runs one tunnel command with the server placeholder
// substituted. An empty command succeeds immediately.
func (c *Controller) runCommand(ctx context.Context, command []string, serverID string) error {
	if len(command) == 0 {
		return nil
	}

	args := make([]string, len(command))
	for i, arg := range command {
		args[i] = strings.ReplaceAll(arg, serverPlaceholder, serverID)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %v (%s)", args[0], err, strings.TrimSpace(string(output)))
	}
	return nil
}

// transition updates the status and notifies callbacks outside the lock.
func (c *Controller) transition(status common.ConnectionStatus, err error) {
	c.mu.Lock()
	c.status = status
	c.lastErr = err
	callbacks := make([]func(common.ConnectionStatus, error), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(status, err)
	}
}
