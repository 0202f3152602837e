// Package ui implements the user-facing surfaces of the VPN client:
//
//   - App: the interactive terminal UI built on bubbletea, showing the
//     server browser grouped by country, the connection status and the
//     forwarded port
//   - TrayIndicator: the system tray icon mirroring the connection state
//   - DesktopNotifier: desktop notifications for connection events
//
// Background services push their events into the UI through App.Send*
// methods and the refresher observer interface; everything is marshaled
// onto the bubbletea update loop, so the model itself needs no locking.
package ui
