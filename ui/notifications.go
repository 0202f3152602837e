// Package ui provides the terminal user interface for the VPN client.
// This file contains the desktop notification support.
package ui

import (
	"os/exec"
	"strconv"

	"github.com/yllada/vpn-client/common"
)

// DesktopNotifier sends desktop notifications through notify-send. It
// implements common.Notifier. When disabled every call is a silent no-op,
// which saves callers from checking the setting themselves.
type DesktopNotifier struct {
	enabled bool
}

// NewDesktopNotifier creates a notifier. enabled mirrors the
// ShowNotifications configuration setting.
func NewDesktopNotifier(enabled bool) *DesktopNotifier {
	return &DesktopNotifier{enabled: enabled}
}

// Notify sends a notification with the given title and message.
func (n *DesktopNotifier) Notify(title, message string) error {
	return n.NotifyWithIcon(title, message, "network-vpn")
}

// NotifyWithIcon sends a notification with a custom icon.
func (n *DesktopNotifier) NotifyWithIcon(title, message, icon string) error {
	if !n.enabled {
		return nil
	}

	cmd := exec.Command("notify-send",
		"--app-name="+common.AppName,
		"--icon="+icon,
		title,
		message,
	)
	if err := cmd.Run(); err != nil {
		common.LogWarn("Error showing notification: %v", err)
		return err
	}
	return nil
}

// NotifyConnected announces an established connection.
func (n *DesktopNotifier) NotifyConnected(serverName string) {
	n.NotifyWithIcon("VPN Connected", "Connected to "+serverName, "network-vpn")
}

// NotifyDisconnected announces a terminated connection.
func (n *DesktopNotifier) NotifyDisconnected() {
	n.NotifyWithIcon("VPN Disconnected", "You are no longer protected.", "network-vpn-disconnected")
}

// NotifyDropped announces a dropped connection being recovered.
func (n *DesktopNotifier) NotifyDropped(serverName string) {
	n.NotifyWithIcon("Connection Lost",
		serverName+": connection lost, attempting to reconnect...", "network-vpn-error")
}

// NotifyPortForwarded announces a newly forwarded port.
func (n *DesktopNotifier) NotifyPortForwarded(port int) {
	n.NotifyWithIcon("Port Forwarded", "Active port: "+strconv.Itoa(port), "network-vpn")
}
