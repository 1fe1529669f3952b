// Package sessions implements the client side of the multiplayer session
// lifecycle: logging in, creating and advertising the game session, finding and
// joining sessions, starting and destroying them. Every backend request is
// asynchronous; the Manager registers a one-shot completion delegate per request
// and reports outcomes to listeners through its On* events.
//
// A Manager is not safe for concurrent use. It must be driven from the goroutine
// the backend delivers its completions on (see internal/core/loop).
package sessions

import (
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/mpsessions/internal/online"
)

// DefaultPublicConnections is used when neither the caller nor the options give
// a connection limit.
const DefaultPublicConnections = 4

// Options configure a Manager.
type Options struct {
	// Index of the local user logins are issued for.
	LocalUser int
	// Connection limit used when CreateSession is called with a non-positive count.
	DefaultPublicConnections int
	// When set, Login uses the environment-supplied credentials (auto-login).
	AuthType string
	// Credentials used when AuthType is empty.
	FallbackCredentials online.Credentials
}

// LoginState is the manager's view of the local user's login.
type LoginState int

const (
	LoggedOut LoginState = iota
	LoggingIn
	LoggedIn
)

func (s LoginState) String() string {
	switch s {
	case LoggingIn:
		return "LoggingIn"
	case LoggedIn:
		return "LoggedIn"
	default:
		return "LoggedOut"
	}
}

// SessionState tracks the game session slot.
type SessionState int

const (
	Absent SessionState = iota
	Creating
	Active
	Joining
	Starting
	InProgress
	Destroying
)

var sessionStateNames = [...]string{"Absent", "Creating", "Active", "Joining", "Starting", "InProgress", "Destroying"}

func (s SessionState) String() string {
	if s < 0 || int(s) >= len(sessionStateNames) {
		return "Unknown"
	}
	return sessionStateNames[s]
}

// pendingCreate is a CreateSession call parked behind another operation. At most
// one is held; a newer request replaces an older one.
type pendingCreate interface {
	isPendingCreate()
}

// createAfterLogin resumes a CreateSession issued while logged out.
type createAfterLogin struct {
	publicConnections int
	extraSettings     map[string]string
}

// createAfterDestroy re-creates the session once the existing one is destroyed.
// The original call's extra settings are not carried over.
type createAfterDestroy struct {
	publicConnections int
}

func (createAfterLogin) isPendingCreate()   {}
func (createAfterDestroy) isPendingCreate() {}

// FindComplete is broadcast when a search finishes.
type FindComplete struct {
	Results []SearchResult
	Success bool
}

// JoinComplete is broadcast when a join finishes.
type JoinComplete struct {
	SessionName string
	Result      online.JoinResult
}

// Manager orchestrates the session lifecycle against an online subsystem.
type Manager struct {
	OnLoginComplete          Event[bool]
	OnCreateSessionComplete  Event[bool]
	OnFindSessionsComplete   Event[FindComplete]
	OnJoinSessionComplete    Event[JoinComplete]
	OnDestroySessionComplete Event[bool]
	OnStartSessionComplete   Event[bool]

	logger  *logrus.Entry
	opts    Options
	lan     bool
	players LocalPlayers

	sessions online.SessionInterface
	identity online.IdentityInterface

	loggedIn    bool
	loginHandle online.DelegateHandle

	createHandle  online.DelegateHandle
	findHandle    online.DelegateHandle
	joinHandle    online.DelegateHandle
	destroyHandle online.DelegateHandle
	startHandle   online.DelegateHandle

	pending        pendingCreate
	state          SessionState
	stateOnDestroy SessionState
	stateOnJoin    SessionState
}

// NewManager resolves the session and identity capabilities of subsystem once.
// A nil subsystem, or one missing a capability, leaves the corresponding
// operations failing their preconditions.
func NewManager(subsystem online.Subsystem, players LocalPlayers, logger *logrus.Logger, opts Options) *Manager {
	if opts.DefaultPublicConnections <= 0 {
		opts.DefaultPublicConnections = DefaultPublicConnections
	}
	m := &Manager{
		logger:  logger.WithField("component", "sessions"),
		opts:    opts,
		players: players,
	}

	if subsystem == nil {
		m.logger.Error("no online subsystem found")
		return m
	}
	m.logger.Infof("using online subsystem '%s'", subsystem.Name())

	m.lan = online.IsLAN(subsystem)
	m.sessions = subsystem.SessionInterface()
	m.identity = subsystem.IdentityInterface()
	if m.players == nil {
		m.players = IdentityPlayers{Identity: m.identity, LocalUser: opts.LocalUser}
	}
	return m
}

// LoginState reports whether the local user is logged in or a login is underway.
func (m *Manager) LoginState() LoginState {
	switch {
	case m.loggedIn:
		return LoggedIn
	case m.loginHandle.IsValid():
		return LoggingIn
	default:
		return LoggedOut
	}
}

func (m *Manager) LoggedIn() bool {
	return m.loggedIn
}

func (m *Manager) SessionState() SessionState {
	return m.state
}

// ResolvedConnectString returns the address of the game session for travel.
func (m *Manager) ResolvedConnectString() (string, bool) {
	if m.isSessionInterfaceInvalid() {
		return "", false
	}
	return m.sessions.ResolvedConnectString(online.GameSession)
}

func (m *Manager) setState(s SessionState) {
	if s == m.state {
		return
	}
	m.logger.Debugf("session state %s -> %s", m.state, s)
	m.state = s
}

func (m *Manager) isSessionInterfaceInvalid() bool {
	if m.sessions == nil {
		m.logger.Error("session interface is not valid")
		return true
	}
	return false
}

func (m *Manager) isIdentityInterfaceInvalid() bool {
	if m.identity == nil {
		m.logger.Error("identity interface is not valid")
		return true
	}
	return false
}
