// Package cli provides command-line interface functionality for the VPN
// client. It lets users inspect servers, manage their session and check
// the connection status without launching the interactive UI.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/releasenotes"
	"github.com/yllada/vpn-client/servers"
	"github.com/yllada/vpn-client/session"
	"github.com/yllada/vpn-client/vpn"
)

// serverSource fetches a server list snapshot on demand.
type serverSource interface {
	FetchServerList(ctx context.Context) (*servers.ServerList, error)
}

// CLI represents the command-line interface.
type CLI struct {
	source    serverSource
	sessions  *session.Manager
	connector *vpn.Controller
	userTier  int
}

// New creates a CLI instance around the shared application services.
func New(source serverSource, sessions *session.Manager, connector *vpn.Controller, userTier int) *CLI {
	return &CLI{
		source:    source,
		sessions:  sessions,
		connector: connector,
		userTier:  userTier,
	}
}

// Servers fetches and prints the server list, grouped by country.
func (c *CLI) Servers() error {
	ctx, cancel := context.WithTimeout(context.Background(), common.APITimeout)
	defer cancel()

	list, err := c.source.FetchServerList(ctx)
	if err != nil {
		return fmt.Errorf("could not fetch server list: %w", err)
	}

	groups := servers.GroupByCountry(list, c.userTier)
	if len(groups) == 0 {
		fmt.Println("No servers available.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVER\tCOUNTRY\tLOAD\tSTATUS")
	fmt.Fprintln(w, "------\t-------\t----\t------")

	for _, group := range groups {
		for _, server := range group.Servers {
			status := "Available"
			if server.UnderMaintenance() {
				status = "Maintenance"
			}
			fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\n", server.Name, group.Name, server.Load, status)
		}
	}

	return w.Flush()
}

// Status prints the current connection status.
func (c *CLI) Status() error {
	status := c.connector.Status()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tSERVER\tUPTIME")
	fmt.Fprintln(w, "------\t------\t------")

	server := c.connector.CurrentServerID()
	if server == "" {
		server = "-"
	}
	uptime := "-"
	if since := c.connector.ConnectedSince(); !since.IsZero() {
		uptime = formatDuration(time.Since(since))
	}

	fmt.Fprintf(w, "%s\t%s\t%s\n", status.String(), server, uptime)
	return w.Flush()
}

// Login prompts for credentials and starts a session.
func (c *CLI) Login() error {
	if c.sessions.Loaded() {
		return fmt.Errorf("already logged in as %s", c.sessions.Username())
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Username: ")
	username, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("could not read username: %w", err)
	}
	username = strings.TrimSpace(username)

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("could not read password: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), common.APITimeout)
	defer cancel()

	if err := c.sessions.Login(ctx, username, string(password)); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Printf("✓ Logged in as %s\n", username)
	return nil
}

// Logout ends the current session.
func (c *CLI) Logout() error {
	ctx, cancel := context.WithTimeout(context.Background(), common.APITimeout)
	defer cancel()

	if err := c.sessions.Logout(ctx); err != nil {
		if errors.Is(err, common.ErrNotLoggedIn) {
			fmt.Println("Not logged in.")
			return nil
		}
		// The local session is gone either way.
		fmt.Printf("Warning: %v\n", err)
	}

	fmt.Println("✓ Logged out")
	return nil
}

// Notes prints the release notes bundled at the given path.
func (c *CLI) Notes(path string) error {
	notes, err := releasenotes.Load(path)
	if err != nil {
		return err
	}

	for i, note := range notes {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(note.Title)
		for _, bullet := range note.Bullets {
			fmt.Println("  - " + bullet)
		}
	}
	return nil
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// PrintHelp prints CLI usage help.
func PrintHelp() {
	fmt.Println(`VPN Client - Command Line Interface

Usage:
  vpn-client [OPTIONS]

Options:
  --version     Show version and exit
  --verbose     Enable verbose logging
  --servers     List available VPN servers
  --status      Show current connection status
  --login       Log in and store the session
  --logout      Log out and clear the stored session
  --notes       Show release notes
  --help        Show this help message

Examples:
  vpn-client --login
  vpn-client --servers
  vpn-client --status

Notes:
  - Run without options to launch the interactive UI`)
}
