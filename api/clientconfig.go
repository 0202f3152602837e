package api

import "time"

// ClientConfig holds the VPN client configuration served by the API:
// the ports usable for connections and whether port forwarding is
// available. Like a server list snapshot, it is immutable once created.
type ClientConfig struct {
	udpPorts       []int
	tcpPorts       []int
	portForwarding bool
	expiresAt      time.Time
}

func newClientConfig(udpPorts, tcpPorts []int, portForwarding bool, lifetimeSeconds int64) *ClientConfig {
	udp := make([]int, len(udpPorts))
	copy(udp, udpPorts)
	tcp := make([]int, len(tcpPorts))
	copy(tcp, tcpPorts)

	return &ClientConfig{
		udpPorts:       udp,
		tcpPorts:       tcp,
		portForwarding: portForwarding,
		expiresAt:      time.Now().Add(time.Duration(lifetimeSeconds) * time.Second),
	}
}

// NewClientConfigForTest builds a client configuration expiring after the
// given lifetime. It exists for tests and defaults.
func NewClientConfigForTest(lifetime time.Duration) *ClientConfig {
	return &ClientConfig{expiresAt: time.Now().Add(lifetime)}
}

// UDPPorts returns the UDP ports available for VPN connections.
// The returned slice must not be modified.
func (c *ClientConfig) UDPPorts() []int { return c.udpPorts }

// TCPPorts returns the TCP ports available for VPN connections.
// The returned slice must not be modified.
func (c *ClientConfig) TCPPorts() []int { return c.tcpPorts }

// PortForwarding reports whether the service allows port forwarding.
func (c *ClientConfig) PortForwarding() bool { return c.portForwarding }

// SecondsUntilExpiration returns how long the configuration stays fresh.
// Expired configurations return zero, never a negative duration.
func (c *ClientConfig) SecondsUntilExpiration() time.Duration {
	remaining := time.Until(c.expiresAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
