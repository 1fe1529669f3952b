package sessions

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/dcrodman/mpsessions/internal/online"
)

// fakeSubsystem is a scripted backend. Requests are recorded and answered with
// the configured issue results; tests fire completions explicitly.
type fakeSubsystem struct {
	name     string
	sessions *fakeSessions
	identity *fakeIdentity
}

func (f *fakeSubsystem) Name() string { return f.name }

func (f *fakeSubsystem) SessionInterface() online.SessionInterface {
	if f.sessions == nil {
		return nil
	}
	return f.sessions
}

func (f *fakeSubsystem) IdentityInterface() online.IdentityInterface {
	if f.identity == nil {
		return nil
	}
	return f.identity
}

type fakeIdentity struct {
	playerID online.UniqueNetID
	status   online.LoginStatus

	autoLoginIssues bool
	loginIssues     bool

	calls       []string
	credentials []online.Credentials
	delegates   online.DelegateList[online.LoginCompleteFunc]
	cleared     int
}

func (f *fakeIdentity) UniquePlayerID(localUser int) (online.UniqueNetID, bool) {
	return f.playerID, f.playerID.IsValid()
}

func (f *fakeIdentity) LoginStatus(localUser int) online.LoginStatus { return f.status }

func (f *fakeIdentity) AutoLogin(localUser int) bool {
	f.calls = append(f.calls, "AutoLogin")
	return f.autoLoginIssues
}

func (f *fakeIdentity) Login(localUser int, credentials online.Credentials) bool {
	f.calls = append(f.calls, "Login")
	f.credentials = append(f.credentials, credentials)
	return f.loginIssues
}

func (f *fakeIdentity) AddOnLoginCompleteDelegate(localUser int, fn online.LoginCompleteFunc) online.DelegateHandle {
	return f.delegates.Add(fn)
}

func (f *fakeIdentity) ClearOnLoginCompleteDelegate(localUser int, handle online.DelegateHandle) {
	if f.delegates.Remove(handle) {
		f.cleared++
	}
}

func (f *fakeIdentity) completeLogin(ok bool) {
	if ok {
		f.status = online.LoggedIn
	}
	for _, fn := range f.delegates.Snapshot() {
		fn(0, ok, f.playerID, "")
	}
}

type fakeSessions struct {
	named *online.NamedSession

	createIssues, findIssues, joinIssues, destroyIssues, startIssues bool

	calls        []string
	hostID       online.UniqueNetID
	lastSettings *online.SessionSettings
	lastSearch   *online.SessionSearch
	lastJoin     online.SearchResult

	createDelegates  online.DelegateList[online.CreateSessionCompleteFunc]
	findDelegates    online.DelegateList[online.FindSessionsCompleteFunc]
	joinDelegates    online.DelegateList[online.JoinSessionCompleteFunc]
	destroyDelegates online.DelegateList[online.DestroySessionCompleteFunc]
	startDelegates   online.DelegateList[online.StartSessionCompleteFunc]
	cleared          map[string]int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		createIssues:  true,
		findIssues:    true,
		joinIssues:    true,
		destroyIssues: true,
		startIssues:   true,
		cleared:       make(map[string]int),
	}
}

func (f *fakeSessions) NamedSession(sessionName string) *online.NamedSession { return f.named }

func (f *fakeSessions) CreateSession(hostID online.UniqueNetID, sessionName string, settings *online.SessionSettings) bool {
	f.calls = append(f.calls, "CreateSession")
	f.hostID = hostID
	f.lastSettings = settings
	return f.createIssues
}

func (f *fakeSessions) FindSessions(searcherID online.UniqueNetID, search *online.SessionSearch) bool {
	f.calls = append(f.calls, "FindSessions")
	f.lastSearch = search
	return f.findIssues
}

func (f *fakeSessions) JoinSession(playerID online.UniqueNetID, sessionName string, result online.SearchResult) bool {
	f.calls = append(f.calls, "JoinSession")
	f.lastJoin = result
	return f.joinIssues
}

func (f *fakeSessions) DestroySession(sessionName string) bool {
	f.calls = append(f.calls, "DestroySession")
	return f.destroyIssues
}

func (f *fakeSessions) StartSession(sessionName string) bool {
	f.calls = append(f.calls, "StartSession")
	return f.startIssues
}

func (f *fakeSessions) ResolvedConnectString(sessionName string) (string, bool) {
	if f.named == nil {
		return "", false
	}
	return "10.0.0.5:7777", true
}

func (f *fakeSessions) AddOnCreateSessionCompleteDelegate(fn online.CreateSessionCompleteFunc) online.DelegateHandle {
	return f.createDelegates.Add(fn)
}

func (f *fakeSessions) ClearOnCreateSessionCompleteDelegate(h online.DelegateHandle) {
	if f.createDelegates.Remove(h) {
		f.cleared["create"]++
	}
}

func (f *fakeSessions) AddOnFindSessionsCompleteDelegate(fn online.FindSessionsCompleteFunc) online.DelegateHandle {
	return f.findDelegates.Add(fn)
}

func (f *fakeSessions) ClearOnFindSessionsCompleteDelegate(h online.DelegateHandle) {
	if f.findDelegates.Remove(h) {
		f.cleared["find"]++
	}
}

func (f *fakeSessions) AddOnJoinSessionCompleteDelegate(fn online.JoinSessionCompleteFunc) online.DelegateHandle {
	return f.joinDelegates.Add(fn)
}

func (f *fakeSessions) ClearOnJoinSessionCompleteDelegate(h online.DelegateHandle) {
	if f.joinDelegates.Remove(h) {
		f.cleared["join"]++
	}
}

func (f *fakeSessions) AddOnDestroySessionCompleteDelegate(fn online.DestroySessionCompleteFunc) online.DelegateHandle {
	return f.destroyDelegates.Add(fn)
}

func (f *fakeSessions) ClearOnDestroySessionCompleteDelegate(h online.DelegateHandle) {
	if f.destroyDelegates.Remove(h) {
		f.cleared["destroy"]++
	}
}

func (f *fakeSessions) AddOnStartSessionCompleteDelegate(fn online.StartSessionCompleteFunc) online.DelegateHandle {
	return f.startDelegates.Add(fn)
}

func (f *fakeSessions) ClearOnStartSessionCompleteDelegate(h online.DelegateHandle) {
	if f.startDelegates.Remove(h) {
		f.cleared["start"]++
	}
}

func (f *fakeSessions) completeCreate(ok bool) {
	if ok {
		f.named = &online.NamedSession{Name: online.GameSession, State: online.Pending}
	}
	for _, fn := range f.createDelegates.Snapshot() {
		fn(online.GameSession, ok)
	}
}

func (f *fakeSessions) completeFind(ok bool, results ...online.SearchResult) {
	f.lastSearch.SearchResults = results
	for _, fn := range f.findDelegates.Snapshot() {
		fn(ok)
	}
}

func (f *fakeSessions) completeJoin(result online.JoinResult) {
	for _, fn := range f.joinDelegates.Snapshot() {
		fn(online.GameSession, result)
	}
}

func (f *fakeSessions) completeDestroy(ok bool) {
	if ok {
		f.named = nil
	}
	for _, fn := range f.destroyDelegates.Snapshot() {
		fn(online.GameSession, ok)
	}
}

func (f *fakeSessions) completeStart(ok bool) {
	for _, fn := range f.startDelegates.Snapshot() {
		fn(online.GameSession, ok)
	}
}

// live returns the number of registered delegates per operation kind.
func (f *fakeSessions) live() map[string]int {
	return map[string]int{
		"create":  f.createDelegates.Len(),
		"find":    f.findDelegates.Len(),
		"join":    f.joinDelegates.Len(),
		"destroy": f.destroyDelegates.Len(),
		"start":   f.startDelegates.Len(),
	}
}

// recorder captures every broadcast made by a Manager.
type recorder struct {
	logins   []bool
	creates  []bool
	finds    []FindComplete
	joins    []JoinComplete
	destroys []bool
	starts   []bool
}

func record(m *Manager) *recorder {
	r := &recorder{}
	m.OnLoginComplete.Add(func(ok bool) { r.logins = append(r.logins, ok) })
	m.OnCreateSessionComplete.Add(func(ok bool) { r.creates = append(r.creates, ok) })
	m.OnFindSessionsComplete.Add(func(c FindComplete) { r.finds = append(r.finds, c) })
	m.OnJoinSessionComplete.Add(func(c JoinComplete) { r.joins = append(r.joins, c) })
	m.OnDestroySessionComplete.Add(func(ok bool) { r.destroys = append(r.destroys, ok) })
	m.OnStartSessionComplete.Add(func(ok bool) { r.starts = append(r.starts, ok) })
	return r
}

type fixture struct {
	subsystem *fakeSubsystem
	sessions  *fakeSessions
	identity  *fakeIdentity
	manager   *Manager
	events    *recorder
	logs      *test.Hook
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	return newFixtureWithName(t, "DIRECTORY", opts)
}

func newFixtureWithName(t *testing.T, name string, opts Options) *fixture {
	t.Helper()
	sessions := newFakeSessions()
	identity := &fakeIdentity{playerID: "player-1", autoLoginIssues: true, loginIssues: true}
	subsystem := &fakeSubsystem{name: name, sessions: sessions, identity: identity}

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	m := NewManager(subsystem, nil, logger, opts)
	return &fixture{
		subsystem: subsystem,
		sessions:  sessions,
		identity:  identity,
		manager:   m,
		events:    record(m),
		logs:      hook,
	}
}

// loggedInFixture returns a fixture whose local user is already logged in.
func loggedInFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, Options{})
	f.identity.status = online.LoggedIn
	if !f.manager.Login() {
		t.Fatal("expected Login() to succeed for an already logged in user")
	}
	return f
}

func validResult(id, owner string) online.SearchResult {
	settings := online.NewSessionSettings()
	settings.Set("MatchType", "Deathmatch", online.ViaOnlineServiceAndPing)
	return online.SearchResult{
		Session: online.Session{
			SessionID:                id,
			OwningUserID:             online.UniqueNetID(owner),
			OwningUserName:           owner,
			NumOpenPublicConnections: 3,
			Settings:                 *settings,
		},
		PingInMs: 20,
	}
}

// noPlayers reports that no local player exists.
type noPlayers struct{ err error }

func (p noPlayers) FirstLocalPlayerID() (online.UniqueNetID, error) { return "", p.err }
