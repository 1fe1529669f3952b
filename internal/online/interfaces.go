package online

// Completion delegate signatures, one per operation kind.
type (
	LoginCompleteFunc          func(localUser int, ok bool, id UniqueNetID, errMsg string)
	CreateSessionCompleteFunc  func(sessionName string, ok bool)
	FindSessionsCompleteFunc   func(ok bool)
	JoinSessionCompleteFunc    func(sessionName string, result JoinResult)
	DestroySessionCompleteFunc func(sessionName string, ok bool)
	StartSessionCompleteFunc   func(sessionName string, ok bool)
)

// Subsystem is a resolved online backend. Either capability may be nil when the
// backend does not provide it; implementations must return an untyped nil in
// that case.
type Subsystem interface {
	Name() string
	SessionInterface() SessionInterface
	IdentityInterface() IdentityInterface
}

// IdentityInterface logs local users into the backend.
type IdentityInterface interface {
	UniquePlayerID(localUser int) (UniqueNetID, bool)
	LoginStatus(localUser int) LoginStatus

	// AutoLogin logs in with credentials supplied by the environment.
	AutoLogin(localUser int) bool
	Login(localUser int, credentials Credentials) bool

	AddOnLoginCompleteDelegate(localUser int, fn LoginCompleteFunc) DelegateHandle
	ClearOnLoginCompleteDelegate(localUser int, handle DelegateHandle)
}

// SessionInterface manages sessions on the backend. All mutating calls return
// false when the request could not be issued, in which case no completion will
// follow.
type SessionInterface interface {
	NamedSession(sessionName string) *NamedSession

	CreateSession(hostID UniqueNetID, sessionName string, settings *SessionSettings) bool
	FindSessions(searcherID UniqueNetID, search *SessionSearch) bool
	JoinSession(playerID UniqueNetID, sessionName string, result SearchResult) bool
	DestroySession(sessionName string) bool
	StartSession(sessionName string) bool
	ResolvedConnectString(sessionName string) (string, bool)

	AddOnCreateSessionCompleteDelegate(fn CreateSessionCompleteFunc) DelegateHandle
	ClearOnCreateSessionCompleteDelegate(handle DelegateHandle)
	AddOnFindSessionsCompleteDelegate(fn FindSessionsCompleteFunc) DelegateHandle
	ClearOnFindSessionsCompleteDelegate(handle DelegateHandle)
	AddOnJoinSessionCompleteDelegate(fn JoinSessionCompleteFunc) DelegateHandle
	ClearOnJoinSessionCompleteDelegate(handle DelegateHandle)
	AddOnDestroySessionCompleteDelegate(fn DestroySessionCompleteFunc) DelegateHandle
	ClearOnDestroySessionCompleteDelegate(handle DelegateHandle)
	AddOnStartSessionCompleteDelegate(fn StartSessionCompleteFunc) DelegateHandle
	ClearOnStartSessionCompleteDelegate(handle DelegateHandle)
}

// Poster schedules a function onto the game thread. Backends deliver every
// completion through it.
type Poster interface {
	Post(fn func()) bool
}
