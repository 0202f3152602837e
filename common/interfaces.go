// Package common provides shared constants, types, and utilities
// used across the VPN Client application.
package common

import "context"

// VPNConnector represents the interface to the VPN connection state machine.
// The state machine itself lives outside this application; this abstraction
// is what the reconnector and the UI talk to.
type VPNConnector interface {
	// Connect establishes a VPN connection to the server with the given ID.
	Connect(ctx context.Context, serverID string) error
	// Disconnect terminates the current VPN connection.
	Disconnect() error
	// Status returns the current connection status.
	Status() ConnectionStatus
	// CurrentServerID returns the ID of the server of the current or last
	// connection, or the empty string if there was none.
	CurrentServerID() string
}

// ConnectionStatus represents the state of a VPN connection.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusDisconnecting
	StatusError
)

// String returns a human-readable status string.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	case StatusDisconnecting:
		return "Disconnecting..."
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// CredentialStore defines the interface for credential storage.
// Implementations may use the system keyring, encrypted files, etc.
type CredentialStore interface {
	// Store saves a secret under the given key.
	Store(key, secret string) error
	// Get retrieves the secret stored under the given key.
	Get(key string) (string, error)
	// Delete removes the secret stored under the given key.
	Delete(key string) error
	// Clear removes all stored secrets.
	Clear() error
}

// Notifier defines the interface for sending desktop notifications.
type Notifier interface {
	// Notify sends a notification with the given title and message.
	Notify(title, message string) error
	// NotifyWithIcon sends a notification with a custom icon.
	NotifyWithIcon(title, message, icon string) error
}

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}
