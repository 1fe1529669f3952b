package sessions

import (
	"github.com/dcrodman/mpsessions/internal/core/debug"
	"github.com/dcrodman/mpsessions/internal/online"
)

// CreateSession creates and advertises the game session with room for
// publicConnections players (the configured default when non-positive) and the
// given extra settings. An existing game session is destroyed first and the new
// one is created once the destroy completes, without the extra settings. When
// logged out, the create waits for a login to finish. The outcome is reported
// through OnCreateSessionComplete.
func (m *Manager) CreateSession(publicConnections int, extraSettings map[string]string) {
	if m.isSessionInterfaceInvalid() {
		m.OnCreateSessionComplete.Broadcast(false)
		return
	}
	if m.createHandle.IsValid() {
		m.logger.Warn("session creation already in progress")
		m.OnCreateSessionComplete.Broadcast(false)
		return
	}

	// The replacement is created from the destroy completion.
	if m.destroyPreviousSessionIfExists(publicConnections) {
		return
	}

	if !m.loggedIn {
		m.logger.Info("user not logged in, attempting to log in")
		deferred := createAfterLogin{publicConnections: publicConnections, extraSettings: extraSettings}
		m.pending = deferred

		if !m.Login() {
			m.pending = nil
			m.logger.Error("failed to issue session creation: login could not be issued")
			m.OnCreateSessionComplete.Broadcast(false)
			return
		}
		if !m.loggedIn {
			m.logger.Info("login issued, session will be created once it completes")
			return
		}
		// Login found the user already logged in. If the completion already
		// ran it has consumed the deferred create itself.
		if _, stillDeferred := m.pending.(createAfterLogin); !stillDeferred {
			return
		}
		m.pending = nil
	}

	if !m.tryAsyncCreateSession(publicConnections, extraSettings) {
		m.logger.Error("failed to issue session creation")
		m.OnCreateSessionComplete.Broadcast(false)
	}
}

// destroyPreviousSessionIfExists reports whether a game session already existed
// and a destroy was issued (or is already underway) to replace it.
func (m *Manager) destroyPreviousSessionIfExists(publicConnections int) bool {
	if m.sessions.NamedSession(online.GameSession) == nil {
		return false
	}
	m.logger.Warn("session already exists, destroying it before creating a new one")
	m.pending = createAfterDestroy{publicConnections: publicConnections}

	if m.destroyHandle.IsValid() {
		return true
	}
	m.DestroySession()
	return true
}

func (m *Manager) tryAsyncCreateSession(publicConnections int, extraSettings map[string]string) bool {
	m.createHandle = m.sessions.AddOnCreateSessionCompleteDelegate(m.onCreateSessionComplete)

	settings := m.newSessionSettings(publicConnections, extraSettings)
	debug.Dump(m.logger, "session settings", settings)

	hostID, err := m.players.FirstLocalPlayerID()
	if err != nil {
		m.logger.Errorf("cannot create session: %v", err)
		m.clearCreateDelegate()
		return false
	}

	if !m.sessions.CreateSession(hostID, online.GameSession, settings) {
		m.clearCreateDelegate()
		return false
	}
	// The completion may already have fired if the backend answered inline.
	if m.createHandle.IsValid() {
		m.setState(Creating)
	}
	return true
}

// newSessionSettings builds the advertised configuration for a create request.
// A fresh value is built for every request.
func (m *Manager) newSessionSettings(publicConnections int, extraSettings map[string]string) *online.SessionSettings {
	if publicConnections <= 0 {
		publicConnections = m.opts.DefaultPublicConnections
	}

	settings := online.NewSessionSettings()
	settings.IsLANMatch = m.lan
	settings.NumPublicConnections = publicConnections
	settings.AllowJoinInProgress = true
	settings.AllowJoinViaPresence = true
	settings.ShouldAdvertise = true
	settings.UsesPresence = true
	settings.UseLobbiesIfAvailable = true
	for name, value := range extraSettings {
		settings.Set(name, value, online.ViaOnlineServiceAndPing)
	}
	return settings
}

func (m *Manager) clearCreateDelegate() {
	m.sessions.ClearOnCreateSessionCompleteDelegate(m.createHandle)
	m.createHandle = 0
}

func (m *Manager) onCreateSessionComplete(sessionName string, ok bool) {
	m.clearCreateDelegate()

	if ok {
		m.logger.Infof("session %s has been created", sessionName)
		m.setState(Active)
	} else {
		m.logger.Errorf("failed to create session %s", sessionName)
		m.setState(Absent)
	}
	m.OnCreateSessionComplete.Broadcast(ok)
}

// DestroySession destroys the game session. The outcome is reported through
// OnDestroySessionComplete.
func (m *Manager) DestroySession() {
	if m.sessions == nil {
		m.logger.Error("during DestroySession: session interface is not valid")
		return
	}
	if m.destroyHandle.IsValid() {
		m.logger.Warn("session destruction already in progress")
		m.OnDestroySessionComplete.Broadcast(false)
		return
	}

	m.destroyHandle = m.sessions.AddOnDestroySessionCompleteDelegate(m.onDestroySessionComplete)
	m.stateOnDestroy = m.state

	if !m.sessions.DestroySession(online.GameSession) {
		m.logger.Error("failed to destroy session")
		m.clearDestroyDelegate()
		m.OnDestroySessionComplete.Broadcast(false)
		m.abandonReplacement()
		return
	}
	if m.destroyHandle.IsValid() {
		m.setState(Destroying)
	}
	m.logger.Info("DestroySession issued successfully")
}

func (m *Manager) clearDestroyDelegate() {
	m.sessions.ClearOnDestroySessionCompleteDelegate(m.destroyHandle)
	m.destroyHandle = 0
}

// abandonReplacement drops a create waiting on the destroy and reports it failed.
func (m *Manager) abandonReplacement() {
	if _, ok := m.pending.(createAfterDestroy); !ok {
		return
	}
	m.pending = nil
	m.logger.Warn("could not replace session: destroy failed")
	m.OnCreateSessionComplete.Broadcast(false)
}

func (m *Manager) onDestroySessionComplete(sessionName string, ok bool) {
	m.clearDestroyDelegate()

	if !ok {
		m.logger.Errorf("failed to destroy session %s", sessionName)
		m.setState(m.stateOnDestroy)
		m.abandonReplacement()
		m.OnDestroySessionComplete.Broadcast(false)
		return
	}

	m.logger.Infof("successfully destroyed session %s", sessionName)
	m.setState(Absent)

	if replacement, ok := m.pending.(createAfterDestroy); ok {
		m.pending = nil
		m.CreateSession(replacement.publicConnections, nil)
	}
	m.OnDestroySessionComplete.Broadcast(true)
}

// StartSession marks the game session as in progress. It returns whether the
// request was issued; the outcome is reported through OnStartSessionComplete.
func (m *Manager) StartSession() bool {
	if m.isSessionInterfaceInvalid() {
		return false
	}
	if m.startHandle.IsValid() {
		m.logger.Warn("session start already in progress")
		m.OnStartSessionComplete.Broadcast(false)
		return false
	}

	m.startHandle = m.sessions.AddOnStartSessionCompleteDelegate(m.onStartSessionComplete)

	if !m.sessions.StartSession(online.GameSession) {
		m.logger.Error("failed to start session")
		m.clearStartDelegate()
		m.OnStartSessionComplete.Broadcast(false)
		return false
	}
	if m.startHandle.IsValid() {
		m.setState(Starting)
	}
	m.logger.Info("StartSession issued successfully")
	return true
}

func (m *Manager) clearStartDelegate() {
	m.sessions.ClearOnStartSessionCompleteDelegate(m.startHandle)
	m.startHandle = 0
}

func (m *Manager) onStartSessionComplete(sessionName string, ok bool) {
	m.clearStartDelegate()

	if ok {
		m.logger.Infof("session %s has started", sessionName)
		m.setState(InProgress)
	} else {
		m.logger.Errorf("failed to start session %s", sessionName)
		m.setState(Active)
	}
	m.OnStartSessionComplete.Broadcast(ok)
}
