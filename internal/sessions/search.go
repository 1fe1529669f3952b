package sessions

import (
	"github.com/dcrodman/mpsessions/internal/core/debug"
	"github.com/dcrodman/mpsessions/internal/online"
	"github.com/dcrodman/mpsessions/internal/query"
)

// SearchResult is a session found by FindSessions, in the shape handed to
// listeners. It keeps the backend result so that it can be joined.
type SearchResult struct {
	ID             string
	OwningUserName string
	PingInMs       int
	OpenSlots      int
	Settings       map[string]string

	result online.SearchResult
}

// ResultFromOnline translates a backend search result. It returns false for
// results that are corrupt and cannot be joined.
func ResultFromOnline(r online.SearchResult) (SearchResult, bool) {
	if !r.IsValid() {
		return SearchResult{}, false
	}

	settings := make(map[string]string, len(r.Session.Settings.Settings))
	for name, setting := range r.Session.Settings.Settings {
		settings[name] = setting.Value
	}
	return SearchResult{
		ID:             r.SessionIDStr(),
		OwningUserName: r.Session.OwningUserName,
		PingInMs:       r.PingInMs,
		OpenSlots:      r.Session.NumOpenPublicConnections,
		Settings:       settings,
		result:         r,
	}, true
}

// Online returns the backend result the SearchResult was translated from.
func (r SearchResult) Online() online.SearchResult {
	return r.result
}

// FindSessions searches for up to maxResults sessions advertising through
// presence. The results are reported through OnFindSessionsComplete.
func (m *Manager) FindSessions(maxResults int) {
	m.FindSessionsWithQuery(maxResults, nil)
}

// FindSessionsWithQuery is FindSessions with additional filters on the sessions'
// advertised settings. Unset filters are ignored.
func (m *Manager) FindSessionsWithQuery(maxResults int, settings map[string]query.Setting) {
	if m.isSessionInterfaceInvalid() {
		return
	}
	if m.findHandle.IsValid() {
		m.logger.Warn("session search already in progress")
		m.OnFindSessionsComplete.Broadcast(FindComplete{Results: []SearchResult{}, Success: false})
		return
	}

	if !m.tryAsyncFindSessions(maxResults, settings) {
		m.logger.Error("FindSessions failed to issue")
		m.OnFindSessionsComplete.Broadcast(FindComplete{Results: []SearchResult{}, Success: false})
		return
	}
	m.logger.Info("FindSessions issued successfully")
}

func (m *Manager) tryAsyncFindSessions(maxResults int, settings map[string]query.Setting) bool {
	searcherID, err := m.players.FirstLocalPlayerID()
	if err != nil {
		m.logger.Errorf("cannot find sessions: %v", err)
		return false
	}

	search := m.newSessionSearch(maxResults, settings)
	debug.Dump(m.logger, "session search", search)

	m.findHandle = m.sessions.AddOnFindSessionsCompleteDelegate(func(ok bool) {
		m.onFindSessionsComplete(search, ok)
	})
	if !m.sessions.FindSessions(searcherID, search) {
		m.clearFindDelegate()
		return false
	}
	return true
}

// newSessionSearch builds the parameters for one find request. A fresh value
// is built for every request and handed to its completion.
func (m *Manager) newSessionSearch(maxResults int, settings map[string]query.Setting) *online.SessionSearch {
	search := online.NewSessionSearch()
	search.IsLANQuery = m.lan
	search.MaxSearchResults = maxResults
	for name, setting := range settings {
		if !setting.IsSet() {
			continue
		}
		search.QuerySettings[name] = setting.Online()
	}
	search.Set(online.SearchPresence, "true", online.Equals)
	return search
}

func (m *Manager) clearFindDelegate() {
	m.sessions.ClearOnFindSessionsCompleteDelegate(m.findHandle)
	m.findHandle = 0
}

func (m *Manager) onFindSessionsComplete(search *online.SessionSearch, ok bool) {
	m.clearFindDelegate()

	results := []SearchResult{}
	if !ok {
		m.logger.Error("failed to find sessions")
		m.OnFindSessionsComplete.Broadcast(FindComplete{Results: results, Success: false})
		return
	}

	m.logger.Infof("found %d sessions", len(search.SearchResults))
	for _, raw := range search.SearchResults {
		result, valid := ResultFromOnline(raw)
		if !valid {
			m.logger.Warn("skipping invalid session result")
			continue
		}
		m.logger.Debugf("session found: %s owned by %s", result.ID, result.OwningUserName)
		results = append(results, result)
	}
	m.OnFindSessionsComplete.Broadcast(FindComplete{Results: results, Success: true})
}

// JoinSession joins the session described by result as the game session. The
// outcome is reported through OnJoinSessionComplete.
func (m *Manager) JoinSession(result SearchResult) {
	if m.sessions == nil {
		m.logger.Error("session interface is not valid")
		m.OnJoinSessionComplete.Broadcast(JoinComplete{SessionName: online.GameSession, Result: online.JoinUnknownError})
		return
	}
	if m.joinHandle.IsValid() {
		m.logger.Warn("session join already in progress")
		m.OnJoinSessionComplete.Broadcast(JoinComplete{SessionName: online.GameSession, Result: online.JoinUnknownError})
		return
	}

	m.joinHandle = m.sessions.AddOnJoinSessionCompleteDelegate(m.onJoinSessionComplete)

	joined := false
	if playerID, err := m.players.FirstLocalPlayerID(); err != nil {
		m.logger.Errorf("cannot join session: %v", err)
	} else if joined = m.sessions.JoinSession(playerID, online.GameSession, result.result); !joined {
		m.logger.Error("failed to join session")
	} else {
		m.logger.Infof("joining session %s", result.ID)
	}

	if !joined {
		m.clearJoinDelegate()
		m.OnJoinSessionComplete.Broadcast(JoinComplete{SessionName: online.GameSession, Result: online.JoinUnknownError})
		return
	}
	if m.joinHandle.IsValid() {
		m.stateOnJoin = m.state
		m.setState(Joining)
	}
}

func (m *Manager) clearJoinDelegate() {
	m.sessions.ClearOnJoinSessionCompleteDelegate(m.joinHandle)
	m.joinHandle = 0
}

func (m *Manager) onJoinSessionComplete(sessionName string, result online.JoinResult) {
	m.clearJoinDelegate()

	if result == online.JoinSuccess {
		m.logger.Infof("joined session %s", sessionName)
		m.setState(Active)
	} else {
		m.logger.Errorf("failed to join session %s: %s", sessionName, result)
		// A session hosted before the join is still there.
		if m.state == Joining {
			m.setState(m.stateOnJoin)
		}
	}
	m.OnJoinSessionComplete.Broadcast(JoinComplete{SessionName: sessionName, Result: result})
}
