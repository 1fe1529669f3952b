// Package online describes the asynchronous online service that the session
// manager drives: an identity capability for logging players in and a session
// capability for creating, finding, joining, starting and destroying sessions.
// Every request returns whether it was issued; the outcome arrives later through
// a completion delegate registered on the same capability.
package online

import "strings"

// GameSession is the single well-known session slot shared by the client and
// the backend.
const GameSession = "GameSession"

// NullSubsystem is the name of the LAN-only subsystem. Sessions created or
// searched through it are LAN matches.
const NullSubsystem = "NULL"

// SearchPresence is the query key used to restrict a search to sessions that
// advertise through presence.
const SearchPresence = "PRESENCESEARCH"

// UniqueNetID identifies a player to the backend.
type UniqueNetID string

func (id UniqueNetID) IsValid() bool {
	return id != ""
}

func (id UniqueNetID) String() string {
	return string(id)
}

// LoginStatus is the identity service's view of a local user.
type LoginStatus int

const (
	NotLoggedIn LoginStatus = iota
	UsingLocalProfile
	LoggedIn
)

func (s LoginStatus) String() string {
	switch s {
	case UsingLocalProfile:
		return "UsingLocalProfile"
	case LoggedIn:
		return "LoggedIn"
	default:
		return "NotLoggedIn"
	}
}

// Credentials are handed to IdentityInterface.Login. Type selects the login flow
// (e.g. "developer" or "accountportal"), ID and Token are interpreted by it.
type Credentials struct {
	Type  string
	ID    string
	Token string
}

// ComparisonOp is the backend's comparison operator for search queries.
type ComparisonOp int

const (
	Equals ComparisonOp = iota
	NotEquals
	GreaterThan
	GreaterThanEquals
	LessThan
	LessThanEquals
	Near
	In
	NotIn
)

var comparisonOpNames = [...]string{
	"Equals", "NotEquals", "GreaterThan", "GreaterThanEquals",
	"LessThan", "LessThanEquals", "Near", "In", "NotIn",
}

func (op ComparisonOp) String() string {
	if op < 0 || int(op) >= len(comparisonOpNames) {
		return "Unknown"
	}
	return comparisonOpNames[op]
}

// QuerySetting is a single search filter.
type QuerySetting struct {
	Value string
	Op    ComparisonOp
}

// AdvertisementType controls how a session setting is exposed to other players.
type AdvertisementType int

const (
	DontAdvertise AdvertisementType = iota
	ViaPingOnly
	ViaOnlineService
	ViaOnlineServiceAndPing
)

// SessionSetting is a single advertised key/value pair.
type SessionSetting struct {
	Value         string
	Advertisement AdvertisementType
}

// SessionSettings is the configuration a session is created and advertised with.
type SessionSettings struct {
	NumPublicConnections  int
	NumPrivateConnections int
	IsLANMatch            bool
	ShouldAdvertise       bool
	AllowJoinInProgress   bool
	AllowJoinViaPresence  bool
	UsesPresence          bool
	UseLobbiesIfAvailable bool
	Settings              map[string]SessionSetting
}

func NewSessionSettings() *SessionSettings {
	return &SessionSettings{Settings: make(map[string]SessionSetting)}
}

// Set adds or replaces a custom setting.
func (s *SessionSettings) Set(key, value string, advertisement AdvertisementType) {
	if s.Settings == nil {
		s.Settings = make(map[string]SessionSetting)
	}
	s.Settings[key] = SessionSetting{Value: value, Advertisement: advertisement}
}

// Get returns the value of a custom setting.
func (s *SessionSettings) Get(key string) (string, bool) {
	setting, ok := s.Settings[key]
	return setting.Value, ok
}

// SearchState tracks a SessionSearch through the backend.
type SearchState int

const (
	SearchNotStarted SearchState = iota
	SearchInProgress
	SearchDone
	SearchFailed
)

// SessionSearch carries the parameters of a find request in and the results out.
// The backend fills SearchResults before invoking the find completion delegate.
type SessionSearch struct {
	MaxSearchResults int
	IsLANQuery       bool
	QuerySettings    map[string]QuerySetting
	SearchResults    []SearchResult
	State            SearchState
}

func NewSessionSearch() *SessionSearch {
	return &SessionSearch{QuerySettings: make(map[string]QuerySetting)}
}

// Set adds or replaces a query filter.
func (s *SessionSearch) Set(key, value string, op ComparisonOp) {
	if s.QuerySettings == nil {
		s.QuerySettings = make(map[string]QuerySetting)
	}
	s.QuerySettings[key] = QuerySetting{Value: value, Op: op}
}

// Session is the advertised description of a remote session.
type Session struct {
	SessionID                string
	OwningUserID             UniqueNetID
	OwningUserName           string
	NumOpenPublicConnections int
	Settings                 SessionSettings
}

// SearchResult is a single session returned by FindSessions.
type SearchResult struct {
	Session  Session
	PingInMs int
}

// IsValid reports whether the result refers to a joinable session. Results
// missing an owner or a session id are corrupt and should be skipped.
func (r SearchResult) IsValid() bool {
	return r.Session.OwningUserID.IsValid() && strings.TrimSpace(r.Session.SessionID) != ""
}

func (r SearchResult) SessionIDStr() string {
	return r.Session.SessionID
}

// SessionState is the backend's lifecycle state for a named session.
type SessionState int

const (
	NoSession SessionState = iota
	Creating
	Pending
	Starting
	InProgress
	Ending
	Ended
	Destroying
)

var sessionStateNames = [...]string{
	"NoSession", "Creating", "Pending", "Starting", "InProgress", "Ending", "Ended", "Destroying",
}

func (s SessionState) String() string {
	if s < 0 || int(s) >= len(sessionStateNames) {
		return "Unknown"
	}
	return sessionStateNames[s]
}

// NamedSession is a session the local player is currently hosting or has joined.
type NamedSession struct {
	Name              string
	SessionID         string
	HostingPlayerID   UniqueNetID
	OwningUserName    string
	State             SessionState
	RegisteredPlayers []UniqueNetID
	Settings          SessionSettings
}

// JoinResult is the outcome reported by the join completion delegate.
type JoinResult int

const (
	JoinSuccess JoinResult = iota
	JoinSessionIsFull
	JoinSessionDoesNotExist
	JoinCouldNotRetrieveAddress
	JoinAlreadyInSession
	JoinUnknownError
)

var joinResultNames = [...]string{
	"Success", "SessionIsFull", "SessionDoesNotExist", "CouldNotRetrieveAddress", "AlreadyInSession", "UnknownError",
}

func (r JoinResult) String() string {
	if r < 0 || int(r) >= len(joinResultNames) {
		return "UnknownError"
	}
	return joinResultNames[r]
}
