package directory

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dcrodman/mpsessions/internal/core/data"
	"github.com/dcrodman/mpsessions/internal/online"
)

// Sessions advertises hosted sessions in the database and joins sessions
// advertised by other players.
type Sessions struct {
	db          *gorm.DB
	connectAddr string
	poster      online.Poster
	identity    *Identity
	logger      *logrus.Entry

	// Sessions the local player hosts or has joined, by name.
	named map[string]*localSession

	createDelegates  online.DelegateList[online.CreateSessionCompleteFunc]
	findDelegates    online.DelegateList[online.FindSessionsCompleteFunc]
	joinDelegates    online.DelegateList[online.JoinSessionCompleteFunc]
	destroyDelegates online.DelegateList[online.DestroySessionCompleteFunc]
	startDelegates   online.DelegateList[online.StartSessionCompleteFunc]
}

type localSession struct {
	online.NamedSession
	hosted      bool
	connectAddr string

	// Set when a destroy arrives before the advertised row has been written.
	destroyQueued bool
}

func newSessions(db *gorm.DB, connectAddr string, poster online.Poster, identity *Identity, logger *logrus.Entry) *Sessions {
	return &Sessions{
		db:          db,
		connectAddr: connectAddr,
		poster:      poster,
		identity:    identity,
		logger:      logger,
		named:       make(map[string]*localSession),
	}
}

func (s *Sessions) NamedSession(sessionName string) *online.NamedSession {
	if session, ok := s.named[sessionName]; ok {
		return &session.NamedSession
	}
	return nil
}

func (s *Sessions) ResolvedConnectString(sessionName string) (string, bool) {
	session, ok := s.named[sessionName]
	if !ok || session.connectAddr == "" {
		return "", false
	}
	return session.connectAddr, true
}

func (s *Sessions) CreateSession(hostID online.UniqueNetID, sessionName string, settings *online.SessionSettings) bool {
	if _, exists := s.named[sessionName]; exists {
		s.logger.Warnf("cannot create session %s: it already exists", sessionName)
		return false
	}
	ownerName, ok := s.identity.PlayerName(hostID)
	if !ok {
		s.logger.Warnf("cannot create session %s: player %s is not logged in", sessionName, hostID)
		return false
	}
	encoded, err := encodeSettings(settings.Settings)
	if err != nil {
		s.logger.Errorf("cannot create session %s: %v", sessionName, err)
		return false
	}
	s.identity.touch(hostID)

	row := &data.AdvertisedSession{
		ID:                       uuid.NewString(),
		Name:                     sessionName,
		OwnerID:                  string(hostID),
		OwnerName:                ownerName,
		LAN:                      settings.IsLANMatch,
		NumPublicConnections:     settings.NumPublicConnections,
		NumOpenPublicConnections: settings.NumPublicConnections,
		ShouldAdvertise:          settings.ShouldAdvertise,
		AllowJoinInProgress:      settings.AllowJoinInProgress,
		UsesPresence:             settings.UsesPresence,
		Settings:                 encoded,
		ConnectAddress:           s.connectAddr,
	}
	local := &localSession{
		NamedSession: online.NamedSession{
			Name:              sessionName,
			SessionID:         row.ID,
			HostingPlayerID:   hostID,
			OwningUserName:    ownerName,
			State:             online.Creating,
			RegisteredPlayers: []online.UniqueNetID{hostID},
			Settings:          *settings,
		},
		hosted:      true,
		connectAddr: s.connectAddr,
	}
	s.named[sessionName] = local

	runAsync(s.poster, s.logger, func() error {
		// Rows left behind by a crashed host would otherwise stay advertised.
		if err := data.DeleteSessionsOwnedBy(s.db, row.OwnerID, sessionName); err != nil {
			return err
		}
		return data.CreateSession(s.db, row)
	}, func(err error) {
		ok := err == nil
		if ok {
			local.State = online.Pending
		} else {
			s.logger.Errorf("error advertising session %s: %v", sessionName, err)
			if s.named[sessionName] == local {
				delete(s.named, sessionName)
			}
		}
		for _, fn := range s.createDelegates.Snapshot() {
			fn(sessionName, ok)
		}

		if local.destroyQueued {
			local.destroyQueued = false
			if ok {
				s.destroy(sessionName, local)
			} else {
				// Nothing was advertised.
				s.completeDestroy(sessionName, true)
			}
		}
	})
	return true
}

type findResult struct {
	results []online.SearchResult
	err     error
}

func (s *Sessions) FindSessions(searcherID online.UniqueNetID, search *online.SessionSearch) bool {
	if search == nil {
		return false
	}
	s.identity.touch(searcherID)
	search.State = online.SearchInProgress
	search.SearchResults = nil

	lan := search.IsLANQuery
	f := newFilter(search.QuerySettings)
	max := search.MaxSearchResults

	runAsync(s.poster, s.logger, func() findResult {
		rows, err := data.FindJoinableSessions(s.db, lan, string(searcherID))
		if err != nil {
			return findResult{err: err}
		}
		candidates := make([]online.SearchResult, 0, len(rows))
		for _, row := range rows {
			result, err := searchResult(row)
			if err != nil {
				s.logger.Warnf("skipping session %s: %v", row.ID, err)
				continue
			}
			candidates = append(candidates, result)
		}
		return findResult{results: f.apply(candidates, max)}
	}, func(r findResult) {
		ok := r.err == nil
		if ok {
			search.SearchResults = r.results
			search.State = online.SearchDone
		} else {
			s.logger.Errorf("error searching for sessions: %v", r.err)
			search.State = online.SearchFailed
		}
		for _, fn := range s.findDelegates.Snapshot() {
			fn(ok)
		}
	})
	return true
}

func searchResult(row data.AdvertisedSession) (online.SearchResult, error) {
	settings, err := decodeSettings(row.Settings)
	if err != nil {
		return online.SearchResult{}, err
	}
	return online.SearchResult{
		Session: online.Session{
			SessionID:                row.ID,
			OwningUserID:             online.UniqueNetID(row.OwnerID),
			OwningUserName:           row.OwnerName,
			NumOpenPublicConnections: row.NumOpenPublicConnections,
			Settings: online.SessionSettings{
				NumPublicConnections: row.NumPublicConnections,
				IsLANMatch:           row.LAN,
				ShouldAdvertise:      row.ShouldAdvertise,
				AllowJoinInProgress:  row.AllowJoinInProgress,
				UsesPresence:         row.UsesPresence,
				Settings:             settings,
			},
		},
	}, nil
}

type joinOutcome struct {
	result online.JoinResult
	row    *data.AdvertisedSession
}

func (s *Sessions) JoinSession(playerID online.UniqueNetID, sessionName string, result online.SearchResult) bool {
	sessionID := result.SessionIDStr()
	if sessionID == "" {
		return false
	}
	s.identity.touch(playerID)

	if _, exists := s.named[sessionName]; exists {
		s.poster.Post(func() { s.completeJoin(sessionName, online.JoinAlreadyInSession) })
		return true
	}

	runAsync(s.poster, s.logger, func() joinOutcome {
		row, err := data.FindSession(s.db, sessionID)
		switch {
		case err != nil:
			s.logger.Errorf("error looking up session %s: %v", sessionID, err)
			return joinOutcome{result: online.JoinUnknownError}
		case row == nil:
			return joinOutcome{result: online.JoinSessionDoesNotExist}
		case row.Started && !row.AllowJoinInProgress:
			return joinOutcome{result: online.JoinSessionIsFull}
		case row.ConnectAddress == "":
			return joinOutcome{result: online.JoinCouldNotRetrieveAddress}
		}

		claimed, err := data.ClaimSlot(s.db, sessionID)
		if err != nil {
			s.logger.Errorf("error joining session %s: %v", sessionID, err)
			return joinOutcome{result: online.JoinUnknownError}
		}
		if !claimed {
			return joinOutcome{result: online.JoinSessionIsFull}
		}
		return joinOutcome{result: online.JoinSuccess, row: row}
	}, func(o joinOutcome) {
		if o.result == online.JoinSuccess {
			state := online.Pending
			if o.row.Started {
				state = online.InProgress
			}
			s.named[sessionName] = &localSession{
				NamedSession: online.NamedSession{
					Name:              sessionName,
					SessionID:         o.row.ID,
					HostingPlayerID:   online.UniqueNetID(o.row.OwnerID),
					OwningUserName:    o.row.OwnerName,
					State:             state,
					RegisteredPlayers: []online.UniqueNetID{playerID},
					Settings:          result.Session.Settings,
				},
				connectAddr: o.row.ConnectAddress,
			}
		}
		s.completeJoin(sessionName, o.result)
	})
	return true
}

func (s *Sessions) completeJoin(sessionName string, result online.JoinResult) {
	for _, fn := range s.joinDelegates.Snapshot() {
		fn(sessionName, result)
	}
}

func (s *Sessions) DestroySession(sessionName string) bool {
	session, ok := s.named[sessionName]
	if !ok {
		return false
	}
	if session.State == online.Creating {
		// The row is still being written; delete it once the create completes.
		session.destroyQueued = true
		return true
	}
	s.destroy(sessionName, session)
	return true
}

// destroy removes a hosted session's row, or gives back the slot a joined
// session claimed, and forgets the session.
func (s *Sessions) destroy(sessionName string, session *localSession) {
	previous := session.State
	session.State = online.Destroying

	runAsync(s.poster, s.logger, func() error {
		if !session.hosted {
			return data.ReleaseSlot(s.db, session.SessionID)
		}
		return data.DeleteSession(s.db, session.SessionID)
	}, func(err error) {
		ok := err == nil
		if ok {
			if s.named[sessionName] == session {
				delete(s.named, sessionName)
			}
		} else {
			s.logger.Errorf("error removing session %s: %v", sessionName, err)
			session.State = previous
		}
		s.completeDestroy(sessionName, ok)
	})
}

func (s *Sessions) completeDestroy(sessionName string, ok bool) {
	for _, fn := range s.destroyDelegates.Snapshot() {
		fn(sessionName, ok)
	}
}

func (s *Sessions) StartSession(sessionName string) bool {
	session, ok := s.named[sessionName]
	if !ok {
		return false
	}
	if session.State != online.Pending && session.State != online.Ended {
		s.logger.Warnf("cannot start session %s in state %s", sessionName, session.State)
		return false
	}
	previous := session.State
	session.State = online.Starting

	runAsync(s.poster, s.logger, func() error {
		if !session.hosted {
			return nil
		}
		if err := data.MarkSessionStarted(s.db, session.SessionID); err != nil {
			return fmt.Errorf("error marking session %s started: %w", session.SessionID, err)
		}
		return nil
	}, func(err error) {
		ok := err == nil
		if ok {
			session.State = online.InProgress
		} else {
			s.logger.Error(err)
			session.State = previous
		}
		for _, fn := range s.startDelegates.Snapshot() {
			fn(sessionName, ok)
		}
	})
	return true
}

func (s *Sessions) AddOnCreateSessionCompleteDelegate(fn online.CreateSessionCompleteFunc) online.DelegateHandle {
	return s.createDelegates.Add(fn)
}

func (s *Sessions) ClearOnCreateSessionCompleteDelegate(handle online.DelegateHandle) {
	s.createDelegates.Remove(handle)
}

func (s *Sessions) AddOnFindSessionsCompleteDelegate(fn online.FindSessionsCompleteFunc) online.DelegateHandle {
	return s.findDelegates.Add(fn)
}

func (s *Sessions) ClearOnFindSessionsCompleteDelegate(handle online.DelegateHandle) {
	s.findDelegates.Remove(handle)
}

func (s *Sessions) AddOnJoinSessionCompleteDelegate(fn online.JoinSessionCompleteFunc) online.DelegateHandle {
	return s.joinDelegates.Add(fn)
}

func (s *Sessions) ClearOnJoinSessionCompleteDelegate(handle online.DelegateHandle) {
	s.joinDelegates.Remove(handle)
}

func (s *Sessions) AddOnDestroySessionCompleteDelegate(fn online.DestroySessionCompleteFunc) online.DelegateHandle {
	return s.destroyDelegates.Add(fn)
}

func (s *Sessions) ClearOnDestroySessionCompleteDelegate(handle online.DelegateHandle) {
	s.destroyDelegates.Remove(handle)
}

func (s *Sessions) AddOnStartSessionCompleteDelegate(fn online.StartSessionCompleteFunc) online.DelegateHandle {
	return s.startDelegates.Add(fn)
}

func (s *Sessions) ClearOnStartSessionCompleteDelegate(handle online.DelegateHandle) {
	s.startDelegates.Remove(handle)
}
