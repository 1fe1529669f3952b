package sessions

import "github.com/dcrodman/mpsessions/internal/online"

// Login logs the local user into the online service. It returns true when the
// user is already logged in or a login is underway, and false when the login
// could not be issued. The result of an issued login is reported through
// OnLoginComplete; a failure to issue is only reported by the return value.
func (m *Manager) Login() bool {
	if m.isIdentityInterfaceInvalid() {
		m.logger.Warn("login failed: identity interface is invalid")
		return false
	}
	if m.loggedIn {
		return true
	}

	// The player may already be logged in, e.g. after traveling to another map.
	localUser := m.opts.LocalUser
	if id, ok := m.identity.UniquePlayerID(localUser); ok && id.IsValid() {
		if m.identity.LoginStatus(localUser) == online.LoggedIn {
			m.logger.Infof("player %s is already logged in", id)
			m.loggedIn = true
			return true
		}
	} else {
		m.logger.Warn("could not retrieve login status: player id is not available")
	}

	if m.loginHandle.IsValid() {
		m.logger.Debug("login already in progress")
		return true
	}

	m.loginHandle = m.identity.AddOnLoginCompleteDelegate(localUser, m.onLoginComplete)

	var issued bool
	if m.opts.AuthType != "" {
		m.logger.Infof("logging in with %s credentials from the environment", m.opts.AuthType)
		issued = m.identity.AutoLogin(localUser)
	} else {
		m.logger.Infof("logging in with %s credentials", m.opts.FallbackCredentials.Type)
		issued = m.identity.Login(localUser, m.opts.FallbackCredentials)
	}

	if !issued {
		m.logger.Warn("failed to issue login")
		m.identity.ClearOnLoginCompleteDelegate(localUser, m.loginHandle)
		m.loginHandle = 0
		return false
	}
	return true
}

func (m *Manager) onLoginComplete(localUser int, ok bool, id online.UniqueNetID, errMsg string) {
	m.identity.ClearOnLoginCompleteDelegate(localUser, m.loginHandle)
	m.loginHandle = 0
	m.loggedIn = ok

	deferred, hasDeferred := m.pending.(createAfterLogin)
	if hasDeferred {
		m.pending = nil
	}

	if ok {
		m.logger.Infof("player %s logged in", id)
		if hasDeferred {
			m.logger.Info("creating session deferred until login")
			m.CreateSession(deferred.publicConnections, deferred.extraSettings)
		}
	} else {
		m.logger.Warnf("login failed: %s", errMsg)
		if hasDeferred {
			m.logger.Warn("could not create session: login failed")
			m.OnCreateSessionComplete.Broadcast(false)
		}
	}

	m.OnLoginComplete.Broadcast(ok)
}
