package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/refresher"
	"github.com/yllada/vpn-client/releasenotes"
	"github.com/yllada/vpn-client/servers"
)

// Messages posted into the bubbletea program. Refresher and connector
// callbacks arrive on their own goroutines; tea.Program.Send marshals
// them onto the update loop.
type (
	serverListMsg     struct{ list *servers.ServerList }
	loadingStartedMsg struct{}
	fetchFailedMsg    struct{ err error }
	statusChangedMsg  struct {
		status common.ConnectionStatus
		err    error
	}
	portChangedMsg    struct{ port int }
	connectResultMsg  struct{ err error }
	refreshRequestMsg struct{}
)

// statusSource is the slice of the VPN controller the UI reads.
type statusSource interface {
	common.VPNConnector
	ConnectedSince() time.Time
}

// App runs the interactive terminal UI. It observes the server list
// refresher and the VPN controller and renders the grouped server
// browser.
type App struct {
	program   *tea.Program
	refresher *refresher.ServerListRefresher
}

// NewApp builds the terminal UI around the given collaborators. userTier
// controls the in-country server ordering; notes may be nil when no
// release notes file is bundled. The caller wires SendStatus and
// SendPort into the controller and port forwarder callbacks.
func NewApp(r *refresher.ServerListRefresher, connector statusSource, userTier int, notes []releasenotes.Note) *App {
	m := newModel(r, connector, userTier, notes)
	app := &App{
		program:   tea.NewProgram(m, tea.WithAltScreen()),
		refresher: r,
	}

	r.RegisterObserver(app)
	return app
}

// The tea program exists before callbacks fire; sends before Run are
// buffered by bubbletea.

// OnLoadingStarted implements refresher.ServerListObserver.
func (a *App) OnLoadingStarted() { a.program.Send(loadingStartedMsg{}) }

// OnServerListUpdated implements refresher.ServerListObserver.
func (a *App) OnServerListUpdated(list *servers.ServerList) {
	a.program.Send(serverListMsg{list: list})
}

// OnFetchFailed implements refresher.ServerListObserver.
func (a *App) OnFetchFailed(err error) { a.program.Send(fetchFailedMsg{err: err}) }

// SendPort publishes a forwarded port change to the UI.
func (a *App) SendPort(port int) { a.program.Send(portChangedMsg{port: port}) }

// SendStatus publishes a connection status change to the UI.
func (a *App) SendStatus(status common.ConnectionStatus, err error) {
	a.program.Send(statusChangedMsg{status: status, err: err})
}

// Run blocks until the user quits.
func (a *App) Run() error {
	_, err := a.program.Run()
	return err
}

// Quit asks the UI to shut down, as if the user pressed q.
func (a *App) Quit() {
	a.program.Quit()
}

// row is one rendered line of the server browser: either a country
// header or a server.
type row struct {
	header bool
	title  string
	server servers.LogicalServer
}

type model struct {
	refresher *refresher.ServerListRefresher
	connector statusSource
	userTier  int

	list    *servers.ServerList
	rows    []row
	cursor  int
	loading bool

	searching bool
	search    textinput.Model
	spinner   spinner.Model

	notes        []releasenotes.Note
	showingNotes bool
	notesView    viewport.Model

	status    common.ConnectionStatus
	statusErr error
	fetchErr  error
	port      int

	width  int
	height int
}

func newModel(r *refresher.ServerListRefresher, connector statusSource, userTier int, notes []releasenotes.Note) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	search := textinput.New()
	search.Placeholder = "country or server"
	search.Prompt = "/"
	search.CharLimit = 64

	m := model{
		refresher: r,
		connector: connector,
		userTier:  userTier,
		spinner:   sp,
		search:    search,
		notes:     notes,
		notesView: viewport.New(80, 20),
		status:    connector.Status(),
	}
	if list := r.Current(); list != nil {
		m.list = list
		m.rebuildRows()
	}
	return m
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.notesView.Width = msg.Width
		if msg.Height > 4 {
			m.notesView.Height = msg.Height - 4
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadingStartedMsg:
		m.loading = true
		return m, nil

	case serverListMsg:
		m.loading = false
		m.fetchErr = nil
		m.list = msg.list
		m.rebuildRows()
		return m, nil

	case fetchFailedMsg:
		m.loading = false
		m.fetchErr = msg.err
		return m, nil

	case statusChangedMsg:
		m.status = msg.status
		m.statusErr = msg.err
		return m, nil

	case portChangedMsg:
		m.port = msg.port
		return m, nil

	case connectResultMsg:
		if msg.err != nil {
			m.statusErr = msg.err
		}
		return m, nil

	case refreshRequestMsg:
		return m, m.refreshCmd()
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showingNotes {
		switch msg.String() {
		case "esc", "n", "q":
			m.showingNotes = false
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		default:
			var cmd tea.Cmd
			m.notesView, cmd = m.notesView.Update(msg)
			return m, cmd
		}
	}

	if m.searching {
		switch msg.String() {
		case "esc":
			m.searching = false
			m.search.SetValue("")
			m.search.Blur()
			m.rebuildRows()
			return m, nil
		case "enter":
			m.searching = false
			m.search.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			m.rebuildRows()
			return m, cmd
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		m.moveCursor(-1)
		return m, nil

	case "down", "j":
		m.moveCursor(1)
		return m, nil

	case "/":
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink

	case "r":
		return m, m.refreshCmd()

	case "n":
		if len(m.notes) > 0 {
			m.notesView.SetContent(renderNotes(m.notes))
			m.notesView.GotoTop()
			m.showingNotes = true
		}
		return m, nil

	case "d":
		return m, m.disconnectCmd()

	case "enter":
		if server, ok := m.selectedServer(); ok && !server.UnderMaintenance() {
			return m, m.connectCmd(server.ID)
		}
		return m, nil
	}

	return m, nil
}

func (m *model) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	next := m.cursor
	for {
		next += delta
		if next < 0 || next >= len(m.rows) {
			return
		}
		if !m.rows[next].header {
			m.cursor = next
			return
		}
	}
}

func (m *model) selectedServer() (servers.LogicalServer, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) || m.rows[m.cursor].header {
		return servers.LogicalServer{}, false
	}
	return m.rows[m.cursor].server, true
}

// rebuildRows flattens the grouped, filtered server list into render
// rows and keeps the cursor on a server line.
func (m *model) rebuildRows() {
	m.rows = m.rows[:0]

	groups := servers.GroupByCountry(m.list, m.userTier)
	groups = servers.Filter(groups, m.search.Value())

	for _, group := range groups {
		m.rows = append(m.rows, row{header: true, title: group.Name})
		for _, server := range group.Servers {
			m.rows = append(m.rows, row{server: server})
		}
	}

	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor < len(m.rows) && m.rows[m.cursor].header {
		m.moveCursor(1)
	}
}

func (m model) connectCmd(serverID string) tea.Cmd {
	connector := m.connector
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), common.ConnectionTimeout)
		defer cancel()
		return connectResultMsg{err: connector.Connect(ctx, serverID)}
	}
}

func (m model) disconnectCmd() tea.Cmd {
	connector := m.connector
	return func() tea.Msg {
		return connectResultMsg{err: connector.Disconnect()}
	}
}

func (m model) refreshCmd() tea.Cmd {
	r := m.refresher
	return func() tea.Msg {
		result := <-r.Fetch()
		if result.Err != nil {
			return fetchFailedMsg{err: result.Err}
		}
		// The accepted snapshot arrives through the observer.
		return nil
	}
}

func (m model) View() string {
	var b strings.Builder

	if m.showingNotes {
		b.WriteString(titleStyle.Render("Release Notes"))
		b.WriteString("\n")
		b.WriteString(m.notesView.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll · esc close"))
		return b.String()
	}

	b.WriteString(titleStyle.Render(common.AppName))
	b.WriteString("\n")

	if m.loading {
		b.WriteString(m.spinner.View() + " Loading server list...\n")
	}

	if m.searching || m.search.Value() != "" {
		b.WriteString(m.search.View() + "\n")
	}

	b.WriteString(m.renderServerRows())
	b.WriteString(m.renderStatusBar())
	help := "enter connect · d disconnect · / search · r refresh · q quit"
	if len(m.notes) > 0 {
		help = "enter connect · d disconnect · / search · r refresh · n notes · q quit"
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

// renderNotes formats the release notes for the viewport.
func renderNotes(notes []releasenotes.Note) string {
	var b strings.Builder
	for i, note := range notes {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(countryStyle.Render(note.Title))
		b.WriteString("\n")
		for _, bullet := range note.Bullets {
			b.WriteString("  • " + bullet + "\n")
		}
	}
	return b.String()
}

func (m model) renderServerRows() string {
	if len(m.rows) == 0 {
		if m.loading {
			return ""
		}
		return statusBarStyle.Render("No servers to show.") + "\n"
	}

	visible := m.visibleRowCount()
	start, end := windowAround(m.cursor, len(m.rows), visible)

	var b strings.Builder
	for i := start; i < end; i++ {
		r := m.rows[i]
		if r.header {
			b.WriteString(countryStyle.Render(r.title))
			b.WriteString("\n")
			continue
		}

		line := fmt.Sprintf("%-18s %s", r.server.Name, loadStyle.Render(fmt.Sprintf("%3d%%", r.server.Load)))
		if r.server.ID == m.connector.CurrentServerID() && m.status == common.StatusConnected {
			line += statusConnectedStyle.Render("  ● connected")
		}

		switch {
		case r.server.UnderMaintenance():
			b.WriteString(maintenanceStyle.Render(r.server.Name + "  (maintenance)"))
		case i == m.cursor:
			b.WriteString(selectedServerStyle.Render(line))
		default:
			b.WriteString(serverStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) renderStatusBar() string {
	style := statusLineStyle(
		m.status == common.StatusConnected,
		m.status == common.StatusConnecting || m.status == common.StatusDisconnecting,
		m.status == common.StatusError,
	)

	line := m.status.String()
	if m.status == common.StatusConnected {
		if since := m.connector.ConnectedSince(); !since.IsZero() {
			line += " to " + m.connector.CurrentServerID()
		}
		if m.port > 0 {
			line += fmt.Sprintf(" · port %d", m.port)
		}
	}
	if m.statusErr != nil {
		line += " · " + m.statusErr.Error()
	}
	if m.fetchErr != nil {
		line += " · refresh failed: " + m.fetchErr.Error()
	}

	return "\n" + style.Render(line) + "\n"
}

func (m model) visibleRowCount() int {
	// Title, status bar, help and padding take up a handful of lines.
	reserved := 7
	if m.height <= reserved {
		return 10
	}
	return m.height - reserved
}

// windowAround returns the [start, end) slice of total rows keeping
// cursor visible in a window of the given size.
func windowAround(cursor, total, size int) (int, int) {
	if total <= size {
		return 0, total
	}
	start := cursor - size/2
	if start < 0 {
		start = 0
	}
	end := start + size
	if end > total {
		end = total
		start = end - size
	}
	return start, end
}
