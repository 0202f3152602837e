package reconnector

import (
	"sync"

	"github.com/yllada/vpn-client/common"
)

// VPNMonitor translates VPN connection status changes into drop and up
// callbacks. The VPN controller feeds it through StatusUpdate.
type VPNMonitor struct {
	// OnDrop is called with the connection error whenever the VPN
	// connection drops.
	OnDrop func(err error)
	// OnUp is called whenever the VPN connection is established.
	OnUp func()

	mu      sync.Mutex
	enabled bool
}

// NewVPNMonitor creates a disabled VPN monitor.
func NewVPNMonitor() *VPNMonitor {
	return &VPNMonitor{}
}

// Enable starts forwarding status updates to the callbacks.
func (m *VPNMonitor) Enable() {
	m.mu.Lock()
	m.enabled = true
	m.mu.Unlock()
}

// Disable stops forwarding status updates.
func (m *VPNMonitor) Disable() {
	m.mu.Lock()
	m.enabled = false
	m.mu.Unlock()
}

// IsEnabled reports whether the monitor forwards status updates.
func (m *VPNMonitor) IsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// StatusUpdate is called by the VPN controller whenever the connection
// status changes. err carries the cause when the status is an error.
func (m *VPNMonitor) StatusUpdate(status common.ConnectionStatus, err error) {
	m.mu.Lock()
	enabled := m.enabled
	onDrop, onUp := m.OnDrop, m.OnUp
	m.mu.Unlock()

	if !enabled {
		return
	}

	switch status {
	case common.StatusError:
		if onDrop != nil {
			onDrop(err)
		}
	case common.StatusConnected:
		if onUp != nil {
			onUp()
		}
	}
}
