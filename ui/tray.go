// Package ui provides the terminal user interface for the VPN client.
// This file contains the system tray indicator.
package ui

import (
	"fmt"
	"sync"
	"time"

	"fyne.io/systray"

	"github.com/yllada/vpn-client/common"
)

// TrayIndicator shows the connection state in the system tray and offers
// a disconnect and a quit action. It is deliberately small: the terminal
// UI is the primary surface, the tray just mirrors the state while the
// terminal is in the background.
type TrayIndicator struct {
	connector common.VPNConnector
	icons     *IconCache
	onQuit    func()

	mu             sync.Mutex
	statusItem     *systray.MenuItem
	uptimeItem     *systray.MenuItem
	disconnectItem *systray.MenuItem
	connectedAt    time.Time
	stopUptime     chan struct{}
}

// NewTrayIndicator creates a tray indicator drawing its icons from the
// given cache. onQuit is called when the user picks Quit from the tray
// menu.
func NewTrayIndicator(connector common.VPNConnector, icons *IconCache, onQuit func()) *TrayIndicator {
	return &TrayIndicator{
		connector: connector,
		icons:     icons,
		onQuit:    onQuit,
	}
}

// Run starts the tray indicator. It blocks, so call it from its own
// goroutine.
func (t *TrayIndicator) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon.
func (t *TrayIndicator) Quit() {
	systray.Quit()
}

func (t *TrayIndicator) onReady() {
	systray.SetIcon(t.icons.IconFor(common.StatusDisconnected))
	systray.SetTitle(common.AppName)
	systray.SetTooltip(common.AppName + " - Disconnected")

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem("○  Not Connected", "Current VPN status")
	t.statusItem.Disable()

	t.uptimeItem = systray.AddMenuItem("⏱ Uptime: --:--:--", "Connection duration")
	t.uptimeItem.Disable()
	t.uptimeItem.Hide()

	systray.AddSeparator()

	t.disconnectItem = systray.AddMenuItem("⏹  Disconnect", "Disconnect from VPN")
	t.disconnectItem.Hide()
	t.mu.Unlock()

	go func() {
		for range t.disconnectItem.ClickedCh {
			if err := t.connector.Disconnect(); err != nil {
				common.LogWarn("Disconnect from tray failed: %v", err)
			}
		}
	}()

	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Quit "+common.AppName)
	go func() {
		<-quitItem.ClickedCh
		if t.onQuit != nil {
			t.onQuit()
		}
	}()

	// Reflect the state the app was in before the tray came up.
	t.SetStatus(t.connector.Status(), t.connector.CurrentServerID())
}

func (t *TrayIndicator) onExit() {
	t.stopUptimeTicker()
}

// SetStatus updates the tray icon and menu for a connection state
// change.
func (t *TrayIndicator) SetStatus(status common.ConnectionStatus, serverID string) {
	t.mu.Lock()
	statusItem, uptimeItem, disconnectItem := t.statusItem, t.uptimeItem, t.disconnectItem
	t.mu.Unlock()
	if statusItem == nil {
		return
	}

	systray.SetIcon(t.icons.IconFor(status))
	systray.SetTooltip(common.AppName + " - " + status.String())

	switch status {
	case common.StatusConnected:
		statusItem.SetTitle("●  Connected to " + serverID)
		disconnectItem.Show()
		uptimeItem.Show()
		t.startUptimeTicker()
	case common.StatusConnecting:
		statusItem.SetTitle("◌  Connecting to " + serverID + "...")
		disconnectItem.Hide()
	case common.StatusError:
		statusItem.SetTitle("✕  Connection error")
		disconnectItem.Hide()
		uptimeItem.Hide()
		t.stopUptimeTicker()
	default:
		statusItem.SetTitle("○  Not Connected")
		disconnectItem.Hide()
		uptimeItem.Hide()
		t.stopUptimeTicker()
	}
}

func (t *TrayIndicator) startUptimeTicker() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopUptime != nil {
		return
	}
	t.connectedAt = time.Now()
	t.stopUptime = make(chan struct{})

	go func(stop chan struct{}, since time.Time) {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				uptime := time.Since(since).Round(time.Second)
				t.mu.Lock()
				item := t.uptimeItem
				t.mu.Unlock()
				if item != nil {
					item.SetTitle(fmt.Sprintf("⏱ Uptime: %s", formatUptime(uptime)))
				}
			}
		}
	}(t.stopUptime, t.connectedAt)
}

func (t *TrayIndicator) stopUptimeTicker() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopUptime != nil {
		close(t.stopUptime)
		t.stopUptime = nil
	}
}

func formatUptime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
