// Package common provides shared constants, types, and utilities
// used across the VPN Client application.
package common

import "time"

// Application metadata.
const (
	// AppID is the unique identifier for the application.
	AppID = "com.vpnclient.app"
	// AppName is the display name of the application.
	AppName = "VPN Client"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "vpn-client"
)

// File names used by the application.
const (
	ConfigFileName       = "config.yaml"
	ServerCacheFileName  = "servers.db"
	LogFileName          = "vpn-client.log"
	ReleaseNotesFileName = "release_notes.md"
)

// Default timeouts and intervals.
const (
	// ServerReloadInterval is how often the server list is refreshed.
	ServerReloadInterval = 60 * time.Second
	// SchedulerCheckInterval is how often the task scheduler looks for due tasks.
	SchedulerCheckInterval = 10 * time.Second
	// ClientConfigRetryInterval is the fallback delay before retrying a
	// failed client configuration fetch.
	ClientConfigRetryInterval = 15 * time.Minute
	// PortMapLifetime is the lease duration requested for NAT-PMP mappings.
	PortMapLifetime = 60 * time.Second
	// PortMapRenewalInterval is how often NAT-PMP mappings are renewed.
	// It is shorter than the lease so active mappings never expire.
	PortMapRenewalInterval = 45 * time.Second
	// APITimeout is the per-request timeout for API calls.
	APITimeout = 30 * time.Second
	// ConnectionTimeout is the maximum time to wait for a VPN connection.
	ConnectionTimeout = 30 * time.Second
)

// Backoff defaults for retrying failed API refreshes.
const (
	// DefaultBackoffBase is the base delay of the exponential backoff.
	DefaultBackoffBase = 1 * time.Second
	// RefreshRandomness is the multiplicative jitter amplitude applied to
	// backoff delays. It matches the credential refresh policy so that many
	// clients failing at the same time do not retry in lockstep.
	RefreshRandomness = 0.22
)
