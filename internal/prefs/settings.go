package prefs

import (
	"github.com/h0rv/ghsync/internal/domain"
)

// Keys used by the typed helpers.
const (
	KeyViewerSettings        = "data_viewer_settings"
	KeyDashboardSettings     = "dashboard_settings"
	KeyRecentSearches        = "recent_searches"
	KeyCollectionPreferences = "collection_preferences"
	KeyGridColumns           = "grid_columns"
	KeySession               = "session"
)

// MaxRecentSearches caps the recent search history.
const MaxRecentSearches = 10

// ViewerSettings is the data viewer state restored on the next launch.
type ViewerSettings struct {
	SelectedCollection string           `json:"selectedCollection,omitempty"`
	PageSize           int              `json:"pageSize,omitempty"`
	SortField          string           `json:"defaultSort,omitempty"`
	SortOrder          domain.SortOrder `json:"defaultSortOrder,omitempty"`
	EssentialOnly      bool             `json:"essentialOnly,omitempty"`
}

// DashboardSettings controls which dashboard panels are shown.
type DashboardSettings struct {
	ShowIntegrationOverview bool `json:"showIntegrationOverview"`
	ShowDataOverview        bool `json:"showDataOverview"`
}

// CollectionPreferences is per-collection state that outlives a session.
type CollectionPreferences struct {
	SortField string           `json:"sortField,omitempty"`
	SortOrder domain.SortOrder `json:"sortOrder,omitempty"`
	FieldPath string           `json:"fieldPath,omitempty"`
}

// ColumnPref is the saved configuration of one grid column.
type ColumnPref struct {
	Field  string `json:"field"`
	Hidden bool   `json:"hidden,omitempty"`
	Width  int    `json:"width,omitempty"`
}

// ViewerSettings returns the saved viewer settings, or defaults with the given page size.
func (s *Store) ViewerSettings(defaultPageSize int) (ViewerSettings, error) {
	settings := ViewerSettings{PageSize: defaultPageSize}
	if _, err := s.Get(KeyViewerSettings, &settings); err != nil {
		return ViewerSettings{PageSize: defaultPageSize}, err
	}
	if settings.PageSize <= 0 {
		settings.PageSize = defaultPageSize
	}
	return settings, nil
}

// SetViewerSettings saves the viewer settings.
func (s *Store) SetViewerSettings(settings ViewerSettings) error {
	return s.Set(KeyViewerSettings, settings)
}

// DashboardSettings returns the saved dashboard settings with every panel on by default.
func (s *Store) DashboardSettings() (DashboardSettings, error) {
	settings := DashboardSettings{ShowIntegrationOverview: true, ShowDataOverview: true}
	if _, err := s.Get(KeyDashboardSettings, &settings); err != nil {
		return DashboardSettings{ShowIntegrationOverview: true, ShowDataOverview: true}, err
	}
	return settings, nil
}

// SetDashboardSettings saves the dashboard settings.
func (s *Store) SetDashboardSettings(settings DashboardSettings) error {
	return s.Set(KeyDashboardSettings, settings)
}

// RecentSearches returns the search history, most recent first.
func (s *Store) RecentSearches() ([]string, error) {
	var searches []string
	if _, err := s.Get(KeyRecentSearches, &searches); err != nil {
		return nil, err
	}
	return searches, nil
}

// AddRecentSearch moves term to the front of the history, dropping duplicates and
// anything past MaxRecentSearches. Blank terms are ignored.
func (s *Store) AddRecentSearch(term string) error {
	if term == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	searches, err := s.RecentSearches()
	if err != nil {
		searches = nil
	}
	out := make([]string, 0, len(searches)+1)
	out = append(out, term)
	for _, existing := range searches {
		if existing != term {
			out = append(out, existing)
		}
	}
	if len(out) > MaxRecentSearches {
		out = out[:MaxRecentSearches]
	}
	return s.Set(KeyRecentSearches, out)
}

// CollectionPreferences returns the saved preferences for collection (zero value if none).
func (s *Store) CollectionPreferences(collection string) (CollectionPreferences, error) {
	all := map[string]CollectionPreferences{}
	if _, err := s.Get(KeyCollectionPreferences, &all); err != nil {
		return CollectionPreferences{}, err
	}
	return all[collection], nil
}

// SetCollectionPreferences saves the preferences for one collection.
func (s *Store) SetCollectionPreferences(collection string, p CollectionPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := map[string]CollectionPreferences{}
	if _, err := s.Get(KeyCollectionPreferences, &all); err != nil {
		all = map[string]CollectionPreferences{}
	}
	all[collection] = p
	return s.Set(KeyCollectionPreferences, all)
}

// GridColumns returns the saved column configuration for collection.
func (s *Store) GridColumns(collection string) ([]ColumnPref, error) {
	all := map[string][]ColumnPref{}
	if _, err := s.Get(KeyGridColumns, &all); err != nil {
		return nil, err
	}
	return all[collection], nil
}

// SetGridColumns saves the column configuration for collection. An empty slice
// removes the entry.
func (s *Store) SetGridColumns(collection string, cols []ColumnPref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := map[string][]ColumnPref{}
	if _, err := s.Get(KeyGridColumns, &all); err != nil {
		all = map[string][]ColumnPref{}
	}
	if len(cols) == 0 {
		delete(all, collection)
	} else {
		all[collection] = cols
	}
	return s.Set(KeyGridColumns, all)
}

// Session returns the stored backend session cookie value.
func (s *Store) Session() (string, error) {
	var session string
	if _, err := s.Get(KeySession, &session); err != nil {
		return "", err
	}
	return session, nil
}

// SetSession stores the backend session cookie value; empty removes it.
func (s *Store) SetSession(session string) error {
	if session == "" {
		return s.Remove(KeySession)
	}
	return s.Set(KeySession, session)
}
