package reconnector

import (
	"errors"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/yllada/vpn-client/common"
)

const (
	login1BusName          = "org.freedesktop.login1"
	login1SeatAutoPath     = "/org/freedesktop/login1/seat/auto"
	login1SeatInterface    = "org.freedesktop.login1.Seat"
	login1SessionInterface = "org.freedesktop.login1.Session"
	login1UnlockSignal     = login1SessionInterface + ".Unlock"
)

// SessionMonitor watches the active logind session over the system D-Bus
// and calls OnSessionUnlocked when the user unlocks their session.
//
// A reconnection attempted while the session is locked tends to hit a
// locked keyring, so the reconnector waits for the unlock signal instead.
type SessionMonitor struct {
	// OnSessionUnlocked is called each time the active session is
	// unlocked. It runs on the monitor's signal goroutine.
	OnSessionUnlocked func()

	mu          sync.Mutex
	conn        *dbus.Conn
	signals     chan *dbus.Signal
	stopChan    chan struct{}
	sessionPath dbus.ObjectPath
	enabled     bool
}

// NewSessionMonitor creates a disabled session monitor.
func NewSessionMonitor() *SessionMonitor {
	return &SessionMonitor{}
}

// Enable connects to the system bus, resolves the active session for the
// current seat and subscribes to its Unlock signal. Enabling an enabled
// monitor is a no-op.
func (m *SessionMonitor) Enable() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled {
		return nil
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return err
	}

	sessionPath, err := activeSessionPath(conn)
	if err != nil {
		conn.Close()
		return err
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(login1SessionInterface),
		dbus.WithMatchMember("Unlock"),
		dbus.WithMatchObjectPath(sessionPath),
	); err != nil {
		conn.Close()
		return err
	}

	m.conn = conn
	m.sessionPath = sessionPath
	m.signals = make(chan *dbus.Signal, 16)
	m.stopChan = make(chan struct{})
	m.enabled = true

	conn.Signal(m.signals)
	go m.watch(m.signals, m.stopChan)

	common.LogInfo("Session monitor enabled (session: %s)", sessionPath)
	return nil
}

// Disable unsubscribes and closes the bus connection. Idempotent.
func (m *SessionMonitor) Disable() {
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

// IsSessionUnlocked reports whether the user session is unlocked. logind
// exposes no reliable synchronous query for this across desktops, so it
// always reports true; the Unlock signal is what drives retries.
func (m *SessionMonitor) IsSessionUnlocked() bool {
	return true
}

// IsEnabled reports whether the monitor is subscribed to the bus.
func (m *SessionMonitor) IsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *SessionMonitor) watch(signals chan *dbus.Signal, stopChan chan struct{}) {
	for {
		select {
		case <-stopChan:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if sig.Name != login1UnlockSignal {
				continue
			}

			m.mu.Lock()
			onUnlocked := m.OnSessionUnlocked
			m.mu.Unlock()

			if onUnlocked != nil {
				onUnlocked()
			}
		}
	}
}

// activeSessionPath resolves the object path of the active session on the
// automatic seat. Headless machines (ssh sessions) have no seat, in which
// case session monitoring is not available.
func activeSessionPath(conn *dbus.Conn) (dbus.ObjectPath, error) {
	seat := conn.Object(login1BusName, dbus.ObjectPath(login1SeatAutoPath))

	variant, err := seat.GetProperty(login1SeatInterface + ".ActiveSession")
	if err != nil {
		return "", err
	}

	// ActiveSession is a (session id, object path) struct.
	active, ok := variant.Value().([]interface{})
	if !ok || len(active) != 2 {
		return "", errors.New("no active session for this seat")
	}
	path, ok := active[1].(dbus.ObjectPath)
	if !ok {
		return "", errors.New("unexpected ActiveSession property shape")
	}
	return path, nil
}
