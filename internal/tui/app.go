package tui

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/h0rv/ghsync/internal/auth"
	"github.com/h0rv/ghsync/internal/catalog"
	"github.com/h0rv/ghsync/internal/dashboard"
	"github.com/h0rv/ghsync/internal/domain"
	"github.com/h0rv/ghsync/internal/prefs"
	"github.com/h0rv/ghsync/internal/session"
	"github.com/h0rv/ghsync/internal/store"
	"github.com/h0rv/ghsync/internal/syncer"
	"github.com/h0rv/ghsync/internal/viewer"
)

// AppScreen represents the different screens in the application flow.
type AppScreen int

const (
	ScreenLoading AppScreen = iota
	ScreenLogin
	ScreenDashboard
	ScreenCollectionPicker
	ScreenFieldPicker
	ScreenGrid
	ScreenDetail
)

// SessionClient is where a pasted session cookie is installed.
type SessionClient interface {
	SetSession(value string)
}

// Services are the dependencies of the TUI.
type Services struct {
	Client    SessionClient
	Tracker   *session.Tracker
	Catalog   *catalog.Catalog
	Viewer    *viewer.Viewer
	Syncer    *syncer.Syncer
	Dashboard *dashboard.Loader
	Prefs     *prefs.Store  // optional
	Deleter   RecordDeleter // optional
	Formatter viewer.Formatter
	Logger    *slog.Logger

	AuthURL    string
	CookieName string
	PageSize   int
}

// AppModel is the root Bubble Tea model that manages screen transitions.
// The flow is login -> dashboard -> collection picker -> grid -> detail.
type AppModel struct {
	// Dependencies
	svc    Services
	store  *store.Store
	ctx    context.Context
	logger *slog.Logger

	// CLI flags (pre-filled values)
	collectionFlag string

	// Current state
	currentScreen AppScreen
	currentModel  tea.Model
	err           error
	loadingMsg    string

	user        *domain.AuthUser
	collections []domain.Collection
	sessions    <-chan session.Snapshot
	unsubscribe func()

	// Cached models to preserve state across screen transitions
	dashboardModel *DashboardModel
	gridModel      *GridModel
}

// NewAppModel creates the app. collectionFlag, when set, opens that collection
// straight after login.
func NewAppModel(svc Services, ctx context.Context, collectionFlag string) AppModel {
	logger := svc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pageSize := svc.PageSize
	if svc.Prefs != nil {
		if vs, err := svc.Prefs.ViewerSettings(pageSize); err == nil {
			pageSize = vs.PageSize
		}
	}
	m := AppModel{
		svc:            svc,
		store:          store.New(svc.Formatter, pageSize),
		ctx:            ctx,
		logger:         logger.With("component", "tui"),
		collectionFlag: collectionFlag,
		currentScreen:  ScreenLoading,
		loadingMsg:     "Checking GitHub connection...",
	}
	if svc.Tracker != nil {
		m.sessions, m.unsubscribe = svc.Tracker.Subscribe()
	}
	return m
}

// Close releases the session subscription.
func (m AppModel) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init initializes the app model.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.checkAuth(), waitForSession(m.sessions))
}

// Update handles messages and transitions between screens.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case ErrorMsg:
		m.err = msg.Err
		return m, nil

	case QuitMsg:
		return m, tea.Quit

	case authCheckedMsg:
		if !msg.snapshot.Authenticated {
			return m.showLogin(msg.err)
		}
		m.user = msg.snapshot.User
		if m.collectionFlag != "" {
			name := m.collectionFlag
			m.collectionFlag = ""
			m.loadingMsg = fmt.Sprintf("Loading %s...", name)
			m.currentModel = nil
			return m, m.loadSchema(name)
		}
		return m.showDashboard()

	case sessionChangedMsg:
		cmd := waitForSession(m.sessions)
		if !msg.snapshot.Authenticated && m.currentScreen != ScreenLogin && m.currentScreen != ScreenLoading {
			next, loginCmd := m.showLogin(fmt.Errorf("not connected to GitHub"))
			return next, tea.Batch(cmd, loginCmd)
		}
		return m, cmd

	case recheckAuthMsg:
		return m, m.checkAuth()

	case sessionSubmittedMsg:
		value := auth.NormalizeCookie(m.svc.CookieName, msg.value)
		if m.svc.Client != nil {
			m.svc.Client.SetSession(value)
		}
		if m.svc.Prefs != nil {
			if err := m.svc.Prefs.SetSession(value); err != nil {
				m.logger.Warn("saving session failed", "error", err)
			}
		}
		return m, m.checkAuth()

	case logoutRequestedMsg:
		return m, m.logout()

	case loggedOutMsg:
		if msg.err != nil {
			return m.broadcast(NotifyMsg{Notification: syncer.Notification{
				Message: fmt.Sprintf("Logout failed: %v", msg.err),
			}})
		}
		m.svc.Tracker.Clear()
		if m.svc.Client != nil {
			m.svc.Client.SetSession("")
		}
		if m.svc.Prefs != nil {
			_ = m.svc.Prefs.SetSession("")
		}
		m.store.Reset()
		m.user = nil
		m.dashboardModel = nil
		m.gridModel = nil
		return m.showLogin(nil)

	case showDashboardMsg:
		return m.showDashboard()

	case showCollectionsMsg:
		m.loadingMsg = "Loading collections..."
		m.currentScreen = ScreenLoading
		m.currentModel = nil
		return m, m.listCollections()

	case collectionsLoadedMsg:
		if m.svc.Viewer != nil && m.svc.Catalog != nil {
			m.svc.Viewer.Registry().SetLegacy(m.svc.Catalog.Legacy())
		}
		if msg.err == nil {
			m.collections = msg.collections
		} else if len(m.collections) == 0 {
			m.collections = entityCollections()
		}
		m.currentScreen = ScreenCollectionPicker
		picker := NewCollectionPickerModel(m.collections, msg.err)
		m.currentModel = picker
		return m, picker.Init()

	case collectionPickerClosedMsg:
		if m.gridModel != nil {
			return m.showGrid()
		}
		return m.showDashboard()

	case schemaLoadedMsg:
		return m.openCollection(msg.collection)

	case CollectionSelectedMsg:
		return m.openCollection(msg.Collection)

	case openFieldPickerMsg:
		m.currentScreen = ScreenFieldPicker
		picker := NewFieldPickerModel(msg.columns, msg.purpose)
		m.currentModel = picker
		return m, picker.Init()

	case FieldSelectedMsg:
		next, _ := m.showGrid()
		m = next.(AppModel)
		var cmd tea.Cmd
		m.currentModel, cmd = m.currentModel.Update(msg)
		m.cacheGrid()
		return m, tea.Batch(cmd, tea.WindowSize())

	case fieldPickerClosedMsg:
		return m.showGrid()

	case openRecordMsg:
		m.currentScreen = ScreenDetail
		detail := NewDetailModel(m.store.Collection(), msg.record, m.store.Formatter(), m.svc.Deleter, m.ctx)
		m.currentModel = detail
		return m, detail.Init()

	case closeDetailMsg:
		next, cmd := m.showGrid()
		if msg.refetch && m.gridModel != nil {
			return next, tea.Batch(cmd, m.gridModel.fetch())
		}
		return next, cmd

	case NotifyMsg, RefetchMsg:
		return m.broadcast(msg)
	}

	// Delegate to current screen's model
	if m.currentModel != nil {
		var cmd tea.Cmd
		m.currentModel, cmd = m.currentModel.Update(msg)
		m.cacheDashboard()
		m.cacheGrid()
		return m, cmd
	}

	return m, nil
}

// broadcast delivers msg to the dashboard and the grid whether or not they are on screen.
func (m AppModel) broadcast(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if m.dashboardModel != nil {
		next, cmd := m.dashboardModel.Update(msg)
		dm := next.(DashboardModel)
		m.dashboardModel = &dm
		cmds = append(cmds, cmd)
	}
	if m.gridModel != nil {
		next, cmd := m.gridModel.Update(msg)
		gm := next.(GridModel)
		m.gridModel = &gm
		cmds = append(cmds, cmd)
	}
	switch m.currentScreen {
	case ScreenDashboard:
		if m.dashboardModel != nil {
			m.currentModel = *m.dashboardModel
		}
	case ScreenGrid:
		if m.gridModel != nil {
			m.currentModel = *m.gridModel
		}
	}
	if n, ok := msg.(NotifyMsg); ok {
		m.logger.Info("notification", "key", n.Notification.Key, "success", n.Notification.Success, "message", n.Notification.Message)
	}
	return m, tea.Batch(cmds...)
}

func (m *AppModel) cacheDashboard() {
	if m.currentScreen != ScreenDashboard {
		return
	}
	if dm, ok := m.currentModel.(DashboardModel); ok {
		m.dashboardModel = &dm
	}
}

func (m *AppModel) cacheGrid() {
	if m.currentScreen != ScreenGrid {
		return
	}
	if gm, ok := m.currentModel.(GridModel); ok {
		m.gridModel = &gm
	}
}

func (m AppModel) showLogin(err error) (tea.Model, tea.Cmd) {
	m.currentScreen = ScreenLogin
	login := NewLoginModel(m.svc.AuthURL, err)
	m.currentModel = login
	return m, login.Init()
}

func (m AppModel) showDashboard() (tea.Model, tea.Cmd) {
	m.currentScreen = ScreenDashboard
	if m.dashboardModel != nil {
		m.currentModel = *m.dashboardModel
		return m, tea.WindowSize()
	}
	dm := NewDashboardModel(m.svc.Dashboard, m.svc.Syncer, m.svc.Prefs, m.user, m.ctx)
	m.dashboardModel = &dm
	m.currentModel = dm
	return m, dm.Init()
}

func (m AppModel) showGrid() (tea.Model, tea.Cmd) {
	if m.gridModel == nil {
		return m.showDashboard()
	}
	m.currentScreen = ScreenGrid
	m.currentModel = *m.gridModel
	// Request window size to ensure proper rendering
	return m, tea.WindowSize()
}

// openCollection points the store at c, restores its saved preferences and shows the grid.
func (m AppModel) openCollection(c domain.Collection) (tea.Model, tea.Cmd) {
	m.store.SetCollection(c.Name, c.Fields)
	if p := m.svc.Prefs; p != nil {
		if vs, err := p.ViewerSettings(m.svc.PageSize); err == nil {
			m.store.SetLimit(vs.PageSize)
			m.store.SetEssential(vs.EssentialOnly)
		}
		if cp, err := p.CollectionPreferences(c.Name); err == nil && cp.SortField != "" {
			m.store.SetSort(cp.SortField, cp.SortOrder)
		}
		if cols, err := p.GridColumns(c.Name); err == nil {
			m.store.SetColumnPrefs(cols)
		}
	}

	m.currentScreen = ScreenGrid
	grid := NewGridModel(m.store, m.svc.Viewer, m.svc.Prefs, m.ctx, m.logger)
	m.gridModel = &grid
	m.currentModel = grid
	return m, grid.Init()
}

// View renders the current screen.
func (m AppModel) View() string {
	if m.err != nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v\n\nPress Ctrl+C to quit", m.err))
	}
	if m.currentModel != nil {
		return m.currentModel.View()
	}
	return m.loadingMsg + "\n\nPress Ctrl+C to quit"
}

// checkAuth asks the backend whether the session is connected.
func (m AppModel) checkAuth() tea.Cmd {
	t, ctx := m.svc.Tracker, m.ctx
	return func() tea.Msg {
		snap, err := t.Check(ctx)
		return authCheckedMsg{snapshot: snap, err: err}
	}
}

func (m AppModel) logout() tea.Cmd {
	t, ctx := m.svc.Tracker, m.ctx
	return func() tea.Msg {
		return loggedOutMsg{err: t.Logout(ctx)}
	}
}

func (m AppModel) listCollections() tea.Cmd {
	c, ctx := m.svc.Catalog, m.ctx
	return func() tea.Msg {
		cols, err := c.List(ctx)
		return collectionsLoadedMsg{collections: cols, err: err}
	}
}

// loadSchema resolves name to a collection. Unknown names still open, without metadata.
func (m AppModel) loadSchema(name string) tea.Cmd {
	c, ctx, logger := m.svc.Catalog, m.ctx, m.logger
	return func() tea.Msg {
		col, err := c.Schema(ctx, name)
		if err != nil {
			logger.Debug("schema unavailable", "collection", name, "error", err)
			return schemaLoadedMsg{collection: domain.Collection{Name: name}}
		}
		return schemaLoadedMsg{collection: *col}
	}
}

// waitForSession delivers the next tracker snapshot.
func waitForSession(ch <-chan session.Snapshot) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return sessionChangedMsg{snapshot: snap}
	}
}

// entityCollections stands in for the catalog when it cannot be read.
func entityCollections() []domain.Collection {
	out := make([]domain.Collection, len(domain.AllKinds))
	for i, k := range domain.AllKinds {
		out[i] = domain.Collection{Name: string(k), DisplayName: k.Label()}
	}
	return out
}

// Custom messages for app transitions.
type (
	authCheckedMsg struct {
		snapshot session.Snapshot
		err      error
	}
	sessionChangedMsg struct {
		snapshot session.Snapshot
	}
	loggedOutMsg struct {
		err error
	}
	collectionsLoadedMsg struct {
		collections []domain.Collection
		err         error
	}
	schemaLoadedMsg struct {
		collection domain.Collection
	}
)
