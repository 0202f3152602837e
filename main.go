// Package main provides the entry point for the VPN Client application.
// VPN Client is a terminal-based client for the VPN service that keeps
// the server list fresh, reconnects dropped tunnels and forwards ports
// through the VPN gateway.
//
// Features:
//   - Periodic server list refresh with offline cache
//   - Automatic reconnection with exponential backoff
//   - NAT-PMP port forwarding behind the VPN gateway
//   - Secure credential storage using the system keyring
//   - Command-line interface for scripting and automation
//
// Usage:
//
//	vpn-client [options]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/yllada/vpn-client/api"
	"github.com/yllada/vpn-client/cli"
	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/config"
	"github.com/yllada/vpn-client/keyring"
	"github.com/yllada/vpn-client/portfwd"
	"github.com/yllada/vpn-client/reconnector"
	"github.com/yllada/vpn-client/refresher"
	"github.com/yllada/vpn-client/releasenotes"
	"github.com/yllada/vpn-client/servers"
	"github.com/yllada/vpn-client/session"
	"github.com/yllada/vpn-client/ui"
	"github.com/yllada/vpn-client/vpn"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
// Default values are used for local development builds
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

var (
	// GUI/General flags
	showVersion = flag.Bool("version", false, "Show version and exit")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	showHelp    = flag.Bool("help", false, "Show help message")

	// CLI flags
	listServers = flag.Bool("servers", false, "List available VPN servers")
	showStatus  = flag.Bool("status", false, "Show current connection status")
	doLogin     = flag.Bool("login", false, "Log in and store the session")
	doLogout    = flag.Bool("logout", false, "Log out and clear the stored session")
	showNotes   = flag.Bool("notes", false, "Show release notes")
)

func main() {
	flag.Parse()

	if *showHelp {
		cli.PrintHelp()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("%s v%s\n", common.AppName, appVersion)
		if buildTime != "unknown" {
			fmt.Printf("  Build:  %s\n", buildTime)
			fmt.Printf("  Commit: %s\n", commitSHA)
		}
		os.Exit(0)
	}

	logLevel := common.LevelInfo
	if *verbose {
		logLevel = common.LevelDebug
	}

	if err := common.InitLogger(common.LogConfig{
		Level:         logLevel,
		EnableFile:    true,
		MaxFileSizeMB: 5,
		MaxBackups:    5,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
	defer common.CloseLogger()

	cfg, err := config.Load()
	if err != nil {
		common.LogWarn("Could not load configuration, using defaults: %v", err)
		cfg = config.DefaultConfig()
	}

	// Shared services used by both the CLI and the interactive UI.
	apiClient := api.NewClient(cfg.APIBaseURL)
	store, err := keyring.NewStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: credential storage unavailable: %v\n", err)
		os.Exit(1)
	}

	sessions := session.NewManager(apiClient, store)
	if err := sessions.Restore(); err != nil {
		common.LogDebug("No session restored: %v", err)
	}

	controller := vpn.NewController(cfg.ConnectCommand, cfg.DisconnectCommand)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	if *listServers || *showStatus || *doLogin || *doLogout || *showNotes {
		runCLI(ctx, apiClient, sessions, controller)
		return
	}

	common.LogInfo("Starting %s v%s", common.AppName, appVersion)
	if err := runUI(ctx, cfg, apiClient, sessions, controller); err != nil {
		common.LogError("UI terminated: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runCLI handles command-line interface operations.
func runCLI(ctx context.Context, apiClient *api.Client, sessions *session.Manager, controller *vpn.Controller) {
	select {
	case <-ctx.Done():
		common.LogInfo("Operation cancelled before execution")
		return
	default:
	}

	cliApp := cli.New(apiClient, sessions, controller, sessions.Tier())

	var cliErr error
	switch {
	case *listServers:
		cliErr = cliApp.Servers()
	case *showStatus:
		cliErr = cliApp.Status()
	case *doLogin:
		cliErr = cliApp.Login()
	case *doLogout:
		cliErr = cliApp.Logout()
	case *showNotes:
		cliErr = cliApp.Notes(resolveNotesPath())
	}

	if cliErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cliErr)
		os.Exit(1)
	}
}

// runUI assembles the background services and runs the interactive UI
// until the user quits or a shutdown signal arrives.
func runUI(ctx context.Context, cfg *config.Config, apiClient *api.Client, sessions *session.Manager, controller *vpn.Controller) error {
	scheduler := refresher.NewScheduler()
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("could not start scheduler: %w", err)
	}
	defer scheduler.Stop()

	serverRefresher := refresher.NewServerListRefresher(apiClient, cfg.ReloadInterval())

	// Seed the refresher from the on-disk cache so the server browser is
	// populated before the first fetch completes, and keep the cache in
	// sync with accepted snapshots from then on.
	cache := openServerCache()
	if cache != nil {
		defer cache.Close()
		if cached, err := cache.Load(); err != nil {
			common.LogWarn("Could not load cached server list: %v", err)
		} else if cached != nil {
			serverRefresher.Prime(cached)
		}
		serverRefresher.RegisterObserver(&cacheWriter{cache: cache})
	}

	configRefresher := refresher.NewClientConfigRefresher(apiClient, scheduler)

	notifier := ui.NewDesktopNotifier(cfg.ShowNotifications)

	notes, err := releasenotes.Load(resolveNotesPath())
	if err != nil {
		common.LogDebug("Release notes unavailable: %v", err)
	}
	app := ui.NewApp(serverRefresher, controller, sessions.Tier(), notes)

	forwarder := portfwd.NewPortForwarder(scheduler)
	forwarder.OnPortChanged(func(port int) {
		app.SendPort(port)
		if port > 0 {
			notifier.NotifyPortForwarded(port)
		}
	})
	defer forwarder.Disable()

	// The server may revoke port forwarding between connections; the
	// latest client config decides whether Enable is allowed.
	portForwardingAllowed := func() bool {
		if !cfg.PortForwarding {
			return false
		}
		current := configRefresher.Current()
		return current != nil && current.PortForwarding()
	}

	vpnMonitor := reconnector.NewVPNMonitor()
	networkMonitor := reconnector.NewNetworkMonitor()
	sessionMonitor := reconnector.NewSessionMonitor()
	recon := reconnector.NewReconnector(
		controller, serverRefresher, scheduler,
		refresher.BackoffPolicy{
			Base:       cfg.BackoffBase(),
			Randomness: cfg.BackoffRandomness,
			MaxDelay:   cfg.BackoffMaxDelay(),
		},
		vpnMonitor, networkMonitor, sessionMonitor,
	)
	if cfg.AutoReconnect {
		if err := recon.Enable(); err != nil {
			common.LogWarn("Auto reconnect unavailable: %v", err)
		}
		defer recon.Disable()
	}

	var tray *ui.TrayIndicator
	if cfg.MinimizeToTray {
		tray = ui.NewTrayIndicator(controller, ui.NewIconCache(), app.Quit)
		go tray.Run()
		defer tray.Quit()
	}

	controller.OnStatusChange(func(status common.ConnectionStatus, err error) {
		app.SendStatus(status, err)
		vpnMonitor.StatusUpdate(status, err)
		if tray != nil {
			tray.SetStatus(status, controller.CurrentServerID())
		}

		switch status {
		case common.StatusConnected:
			notifier.NotifyConnected(controller.CurrentServerID())
			if portForwardingAllowed() {
				forwarder.Enable()
			}
		case common.StatusDisconnected:
			notifier.NotifyDisconnected()
			forwarder.Disable()
		case common.StatusError:
			notifier.NotifyDropped(controller.CurrentServerID())
			forwarder.Disable()
		}
	})

	// The API endpoints behind the refreshers require authentication.
	if sessions.Loaded() {
		serverRefresher.Start()
		defer serverRefresher.Stop()
		configRefresher.Enable()
		defer configRefresher.Disable()
	} else {
		common.LogWarn("Not logged in; run with --login to fetch servers.")
	}

	// A shutdown signal quits the UI the same way the q key does.
	go func() {
		<-ctx.Done()
		app.Quit()
	}()

	return app.Run()
}

// setupSignalHandler configures graceful shutdown on SIGINT/SIGTERM.
// When a signal is received, it cancels the context to allow cleanup.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		common.LogInfo("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	}()
}

// cacheWriter persists every accepted server list snapshot so the next
// start has data before its first fetch.
type cacheWriter struct {
	cache *servers.Cache
}

func (w *cacheWriter) OnLoadingStarted() {}

func (w *cacheWriter) OnServerListUpdated(list *servers.ServerList) {
	if err := w.cache.Save(list); err != nil {
		common.LogWarn("Could not cache server list: %v", err)
	}
}

func (w *cacheWriter) OnFetchFailed(err error) {}

// openServerCache opens the snapshot cache in the data directory.
// Returns nil when the cache is unavailable; the client works without
// it, it just starts with an empty server browser.
func openServerCache() *servers.Cache {
	dataDir, err := common.GetDataDir()
	if err != nil {
		common.LogWarn("Data directory unavailable, server cache disabled: %v", err)
		return nil
	}

	cache, err := servers.OpenCache(filepath.Join(dataDir, common.ServerCacheFileName))
	if err != nil {
		common.LogWarn("Server cache disabled: %v", err)
		return nil
	}
	return cache
}

// resolveNotesPath locates the bundled release notes: next to the
// binary for development builds, under /usr/share for installed ones.
func resolveNotesPath() string {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), common.ReleaseNotesFileName)
		if common.FileExists(candidate) {
			return candidate
		}
	}
	return filepath.Join("/usr/share", common.ConfigDirName, common.ReleaseNotesFileName)
}
