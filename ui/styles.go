// Package ui provides the terminal user interface for the VPN client.
// This file contains the lipgloss styles and theming.
package ui

import "github.com/charmbracelet/lipgloss"

// Theme colors. Green, amber and red match the connection states; blue
// is the accent used for selections and headers.
var (
	colorConnected   = lipgloss.Color("#2ec27e")
	colorConnecting  = lipgloss.Color("#e5a50a")
	colorError       = lipgloss.Color("#e01b24")
	colorAccent      = lipgloss.Color("#3584e4")
	colorMuted       = lipgloss.Color("241")
	colorHighlightBg = lipgloss.Color("236")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			Padding(0, 1)

	countryStyle = lipgloss.NewStyle().
			Bold(true).
			MarginTop(1)

	serverStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	selectedServerStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Background(colorHighlightBg).
				Bold(true)

	maintenanceStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(colorMuted).
				Strikethrough(true)

	statusConnectedStyle = lipgloss.NewStyle().
				Foreground(colorConnected).
				Bold(true)

	statusConnectingStyle = lipgloss.NewStyle().
				Foreground(colorConnecting)

	statusErrorStyle = lipgloss.NewStyle().
				Foreground(colorError).
				Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	loadStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorAccent)
)

// statusLineStyle returns the style matching a status line.
func statusLineStyle(connected, connecting, failed bool) lipgloss.Style {
	switch {
	case failed:
		return statusErrorStyle
	case connecting:
		return statusConnectingStyle
	case connected:
		return statusConnectedStyle
	default:
		return statusBarStyle
	}
}
