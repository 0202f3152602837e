// Package portfwd implements the automatic port forwarding feature.
//
// While connected to a VPN server supporting port forwarding, it keeps a
// NAT-PMP mapping alive against the VPN gateway so peer-to-peer traffic
// can reach the client. Mappings are short-lived on purpose; the
// forwarder renews them before they expire.
package portfwd

import (
	"net"
	"sync"
	"time"

	natpmp "github.com/jackpal/go-nat-pmp"

	"github.com/yllada/vpn-client/common"
)

// gatewayIP is the NAT-PMP gateway inside the VPN tunnel.
const gatewayIP = "10.2.0.1"

// portMapper is the slice of the NAT-PMP client the forwarder uses.
type portMapper interface {
	AddPortMapping(protocol string, internalPort, requestedExternalPort int, lifetime int) (*natpmp.AddPortMappingResult, error)
}

// taskScheduler is the slice of the scheduler the forwarder needs.
type taskScheduler interface {
	RunAfter(delay time.Duration, fn func()) int
	Cancel(id int)
}

// PortForwarder keeps one NAT-PMP port mapping alive while enabled.
//
// The gateway assigns the same external port for UDP and TCP; when the
// two mappings come back with different ports the forwarder aborts,
// because peers expect a single port for both protocols.
type PortForwarder struct {
	mapper    portMapper
	scheduler taskScheduler

	mu            sync.Mutex
	enabled       bool
	errored       bool
	lastErr       error
	port          int
	renewalTaskID int
	renewPending  bool
	onPortChanged []func(port int)
}

// NewPortForwarder creates a forwarder mapping ports against the VPN
// NAT-PMP gateway, scheduling renewals on the given scheduler.
func NewPortForwarder(scheduler taskScheduler) *PortForwarder {
	return &PortForwarder{
		mapper:    natpmp.NewClient(net.ParseIP(gatewayIP)),
		scheduler: scheduler,
	}
}

// newPortForwarderWithMapper is the constructor tests use to stub out the
// gateway.
func newPortForwarderWithMapper(mapper portMapper, scheduler taskScheduler) *PortForwarder {
	return &PortForwarder{
		mapper:    mapper,
		scheduler: scheduler,
	}
}

// OnPortChanged registers a callback invoked whenever the forwarded port
// changes, including to 0 when forwarding stops.
func (f *PortForwarder) OnPortChanged(fn func(port int)) {
	f.mu.Lock()
	f.onPortChanged = append(f.onPortChanged, fn)
	f.mu.Unlock()
}

// Port returns the currently forwarded external port, or 0 when none is
// active.
func (f *PortForwarder) Port() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.port
}

// Enabled reports whether the feature is enabled.
func (f *PortForwarder) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

// Errored reports whether forwarding stopped because of an error. An
// errored forwarder stays enabled but does not retry until re-enabled.
func (f *PortForwarder) Errored() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errored
}

// Err returns the error that stopped forwarding, or nil.
func (f *PortForwarder) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Enable starts forwarding, mapping a port immediately and renewing it
// before the mapping lifetime runs out. Enabling an enabled forwarder
// restarts it, clearing a previous error state.
func (f *PortForwarder) Enable() {
	f.mu.Lock()
	f.enabled = true
	f.errored = false
	f.lastErr = nil
	f.cancelRenewalLocked()
	f.mu.Unlock()

	common.LogInfo("Automatic port forwarder enabled.")
	f.forward()
}

// Disable stops forwarding and drops the current port. The gateway
// mapping simply expires; NAT-PMP needs no explicit teardown for
// short-lived mappings. Idempotent.
func (f *PortForwarder) Disable() {
	f.mu.Lock()
	if !f.enabled {
		f.mu.Unlock()
		return
	}
	f.enabled = false
	f.errored = false
	f.lastErr = nil
	f.cancelRenewalLocked()
	f.mu.Unlock()

	f.setPort(0)
	common.LogInfo("Automatic port forwarder disabled.")
}

// forward requests UDP and TCP mappings and publishes the external port.
// On success it schedules the next renewal; on failure it enters the
// errored state and stops.
func (f *PortForwarder) forward() {
	if !f.running() {
		return
	}

	lifetime := int(common.PortMapLifetime.Seconds())

	udp, err := f.mapper.AddPortMapping("udp", 0, 1, lifetime)
	if err != nil {
		f.fail(err, "Automatic port forwarding failed: %v", err)
		return
	}
	tcp, err := f.mapper.AddPortMapping("tcp", 0, 1, lifetime)
	if err != nil {
		f.fail(err, "Automatic port forwarding failed: %v", err)
		return
	}

	udpPort := int(udp.MappedExternalPort)
	tcpPort := int(tcp.MappedExternalPort)
	if udpPort != tcpPort {
		f.fail(common.ErrPortMismatch,
			"Automatic port forwarding detected different UDP and TCP ports (UDP port %d and TCP port %d), aborting.",
			udpPort, tcpPort)
		return
	}

	common.LogDebug("Automatically forwarded port %d.", udpPort)
	f.setPort(udpPort)
	f.scheduleRenewal()
}

func (f *PortForwarder) scheduleRenewal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.enabled || f.errored {
		return
	}
	f.renewPending = true
	f.renewalTaskID = f.scheduler.RunAfter(common.PortMapRenewalInterval, func() {
		f.mu.Lock()
		f.renewPending = false
		f.mu.Unlock()
		f.forward()
	})
}

func (f *PortForwarder) fail(cause error, format string, args ...interface{}) {
	common.LogError(format, args...)

	f.mu.Lock()
	f.errored = true
	f.lastErr = cause
	f.cancelRenewalLocked()
	f.mu.Unlock()

	f.setPort(0)
}

func (f *PortForwarder) running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled && !f.errored
}

func (f *PortForwarder) cancelRenewalLocked() {
	if f.renewPending {
		f.scheduler.Cancel(f.renewalTaskID)
		f.renewPending = false
	}
}

func (f *PortForwarder) setPort(port int) {
	f.mu.Lock()
	if f.port == port {
		f.mu.Unlock()
		return
	}
	f.port = port
	callbacks := make([]func(int), len(f.onPortChanged))
	copy(callbacks, f.onPortChanged)
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn(port)
	}
}
