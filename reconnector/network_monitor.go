package reconnector

import (
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/yllada/vpn-client/common"
)

const (
	nmBusName       = "org.freedesktop.NetworkManager"
	nmObjectPath    = "/org/freedesktop/NetworkManager"
	nmInterface     = "org.freedesktop.NetworkManager"
	nmStateChanged  = nmInterface + ".StateChanged"
	nmStateProperty = nmInterface + ".State"

	// NM_STATE_CONNECTED_GLOBAL: full connectivity, internet reachable.
	nmStateConnectedGlobal uint32 = 70
)

// NetworkMonitor watches NetworkManager's global connectivity state over
// the system D-Bus and calls OnNetworkUp whenever the machine (re)gains
// internet connectivity.
type NetworkMonitor struct {
	// OnNetworkUp is called each time connectivity transitions from down
	// to up. It runs on the monitor's signal goroutine.
	OnNetworkUp func()

	mu        sync.Mutex
	conn      *dbus.Conn
	signals   chan *dbus.Signal
	stopChan  chan struct{}
	networkUp bool
	enabled   bool
}

// NewNetworkMonitor creates a disabled network monitor.
func NewNetworkMonitor() *NetworkMonitor {
	return &NetworkMonitor{}
}

// Enable connects to the system bus and subscribes to NetworkManager
// state changes. Enabling an enabled monitor is a no-op.
func (m *NetworkMonitor) Enable() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled {
		return nil
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return err
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(nmInterface),
		dbus.WithMatchMember("StateChanged"),
	); err != nil {
		conn.Close()
		return err
	}

	m.conn = conn
	m.networkUp = m.queryState()
	m.signals = make(chan *dbus.Signal, 16)
	m.stopChan = make(chan struct{})
	m.enabled = true

	conn.Signal(m.signals)
	go m.watch(m.signals, m.stopChan)

	common.LogInfo("Network monitor enabled (network up: %v)", m.networkUp)
	return nil
}

// Disable unsubscribes from state changes and closes the bus connection.
// Idempotent.
func (m *NetworkMonitor) Disable() {
	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return
	}
	m.enabled = false
	close(m.stopChan)
	conn, signals := m.conn, m.signals
	m.conn = nil
	m.mu.Unlock()

	conn.RemoveSignal(signals)
	conn.Close()
}

// IsNetworkUp reports the last known connectivity state. When the monitor
// is disabled it optimistically reports true so reconnection attempts are
// not blocked on missing information.
func (m *NetworkMonitor) IsNetworkUp() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return true
	}
	return m.networkUp
}

// IsEnabled reports whether the monitor is subscribed to the bus.
func (m *NetworkMonitor) IsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// queryState reads NetworkManager's current State property. Callers must
// hold the mutex or otherwise own m.conn.
func (m *NetworkMonitor) queryState() bool {
	obj := m.conn.Object(nmBusName, dbus.ObjectPath(nmObjectPath))
	variant, err := obj.GetProperty(nmStateProperty)
	if err != nil {
		common.LogWarn("Could not read NetworkManager state: %v", err)
		return false
	}
	state, ok := variant.Value().(uint32)
	return ok && state >= nmStateConnectedGlobal
}

func (m *NetworkMonitor) watch(signals chan *dbus.Signal, stopChan chan struct{}) {
	for {
		select {
		case <-stopChan:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if sig.Name != nmStateChanged || len(sig.Body) == 0 {
				continue
			}
			state, ok := sig.Body[0].(uint32)
			if !ok {
				continue
			}
			m.handleState(state)
		}
	}
}

func (m *NetworkMonitor) handleState(state uint32) {
	up := state >= nmStateConnectedGlobal

	m.mu.Lock()
	justWentUp := up && !m.networkUp
	m.networkUp = up
	onUp := m.OnNetworkUp
	m.mu.Unlock()

	if justWentUp && onUp != nil {
		onUp()
	}
}
