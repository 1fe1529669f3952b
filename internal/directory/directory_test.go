package directory

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus/hooks/test"
	"gorm.io/gorm"

	"github.com/dcrodman/mpsessions/internal/core"
	"github.com/dcrodman/mpsessions/internal/core/auth"
	"github.com/dcrodman/mpsessions/internal/core/data"
	"github.com/dcrodman/mpsessions/internal/online"
)

// queuePoster collects posted completions so tests can run them one at a time.
type queuePoster struct {
	ch chan func()
}

func newQueuePoster() *queuePoster {
	return &queuePoster{ch: make(chan func(), 64)}
}

func (p *queuePoster) Post(fn func()) bool {
	p.ch <- fn
	return true
}

// next runs the next posted completion.
func (p *queuePoster) next(t *testing.T) {
	t.Helper()
	select {
	case fn := <-p.ch:
		fn()
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a completion")
	}
}

func setUpDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("error initializing test database: %s", err)
	}
	if err := data.Migrate(db); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"alice", "bob", "carol"} {
		if _, err := auth.CreateAccount(db, name, name+"-password", ""); err != nil {
			t.Fatalf("error creating test account: %v", err)
		}
	}
	return db
}

func testConfig() *core.Config {
	cfg := &core.Config{}
	cfg.Directory.ConnectHost = "10.0.0.5"
	cfg.Directory.ConnectPort = 7777
	cfg.Directory.PresenceTTL = time.Minute
	return cfg
}

type player struct {
	subsystem *Subsystem
	id        online.UniqueNetID
}

// loggedIn builds a subsystem on db and logs name into it.
func loggedIn(t *testing.T, db *gorm.DB, poster *queuePoster, name string) player {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s := New(Name, db, testConfig(), poster, logger)

	var id online.UniqueNetID
	s.identity.AddOnLoginCompleteDelegate(0, func(localUser int, ok bool, netID online.UniqueNetID, errMsg string) {
		if !ok {
			t.Fatalf("login for %s failed: %s", name, errMsg)
		}
		id = netID
	})
	if !s.identity.Login(0, online.Credentials{Type: DeveloperAuth, ID: name, Token: name + "-password"}) {
		t.Fatalf("login for %s was not issued", name)
	}
	poster.next(t)
	return player{subsystem: s, id: id}
}

func TestIdentity_Login(t *testing.T) {
	db := setUpDatabase(t)
	poster := newQueuePoster()
	logger, _ := test.NewNullLogger()
	identity := New(Name, db, testConfig(), poster, logger).identity

	type outcome struct {
		ok     bool
		errMsg string
	}
	var got []outcome
	identity.AddOnLoginCompleteDelegate(0, func(localUser int, ok bool, id online.UniqueNetID, errMsg string) {
		got = append(got, outcome{ok: ok, errMsg: errMsg})
	})

	if !identity.Login(0, online.Credentials{Type: DeveloperAuth, ID: "alice", Token: "wrong"}) {
		t.Fatal("expected login to be issued")
	}
	poster.next(t)
	if identity.LoginStatus(0) != online.NotLoggedIn {
		t.Error("expected a failed login to leave the user logged out")
	}

	if !identity.Login(0, online.Credentials{Type: "Developer", ID: "alice", Token: "alice-password"}) {
		t.Fatal("expected login to be issued")
	}
	poster.next(t)

	want := []outcome{{ok: false, errMsg: auth.ErrInvalidCredentials.Error()}, {ok: true}}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("unexpected login outcomes: %+v", got)
	}
	id, ok := identity.UniquePlayerID(0)
	if !ok || !id.IsValid() || identity.LoginStatus(0) != online.LoggedIn {
		t.Fatalf("expected local user to be logged in, got %q", id)
	}
	if name, _ := identity.PlayerName(id); name != "alice" {
		t.Errorf("expected player name alice, got %q", name)
	}

	identity.Logout(0)
	if identity.LoginStatus(0) != online.NotLoggedIn {
		t.Error("expected Logout to log the user out")
	}
}

func TestIdentity_RejectedLogins(t *testing.T) {
	db := setUpDatabase(t)
	logger, _ := test.NewNullLogger()
	identity := New(Name, db, testConfig(), newQueuePoster(), logger).identity

	if identity.Login(0, online.Credentials{Type: "steam", ID: "alice", Token: "x"}) {
		t.Error("expected an unsupported credential type to be rejected")
	}
	if identity.Login(0, online.Credentials{Type: DeveloperAuth}) {
		t.Error("expected blank credentials to be rejected")
	}
	if identity.AutoLogin(0) {
		t.Error("expected auto-login without a configured account to be rejected")
	}
	if identity.Login(0, online.Credentials{Type: AccountPortalAuth}) {
		t.Error("expected account portal login without a configured account to be rejected")
	}
}

func TestIdentity_AutoLogin(t *testing.T) {
	db := setUpDatabase(t)
	poster := newQueuePoster()
	logger, _ := test.NewNullLogger()
	cfg := testConfig()
	cfg.Online.Username = "bob"
	cfg.Online.Password = "bob-password"
	identity := New(Name, db, cfg, poster, logger).identity

	if !identity.AutoLogin(0) {
		t.Fatal("expected auto-login to be issued")
	}
	poster.next(t)
	if identity.LoginStatus(0) != online.LoggedIn {
		t.Error("expected auto-login to log the user in")
	}
}

func TestIdentity_PresenceExpires(t *testing.T) {
	db := setUpDatabase(t)
	poster := newQueuePoster()
	logger, _ := test.NewNullLogger()
	cfg := testConfig()
	cfg.Directory.PresenceTTL = 50 * time.Millisecond
	identity := New(Name, db, cfg, poster, logger).identity

	identity.Login(0, online.Credentials{Type: DeveloperAuth, ID: "alice", Token: "alice-password"})
	poster.next(t)
	if identity.LoginStatus(0) != online.LoggedIn {
		t.Fatal("expected the user to be logged in")
	}

	time.Sleep(100 * time.Millisecond)
	if identity.LoginStatus(0) != online.NotLoggedIn {
		t.Error("expected presence to expire")
	}
}

func TestSessions_Lifecycle(t *testing.T) {
	db := setUpDatabase(t)
	poster := newQueuePoster()
	host := loggedIn(t, db, poster, "alice")
	guest := loggedIn(t, db, poster, "bob")
	hostSessions := host.subsystem.sessions
	guestSessions := guest.subsystem.sessions

	var events []string
	hostSessions.AddOnCreateSessionCompleteDelegate(func(name string, ok bool) {
		if ok {
			events = append(events, "created")
		}
	})
	hostSessions.AddOnStartSessionCompleteDelegate(func(name string, ok bool) {
		if ok {
			events = append(events, "started")
		}
	})
	hostSessions.AddOnDestroySessionCompleteDelegate(func(name string, ok bool) {
		if ok {
			events = append(events, "destroyed")
		}
	})
	var joinResult online.JoinResult = -1
	guestSessions.AddOnJoinSessionCompleteDelegate(func(name string, result online.JoinResult) {
		joinResult = result
	})
	var found bool
	guestSessions.AddOnFindSessionsCompleteDelegate(func(ok bool) { found = ok })

	settings := online.NewSessionSettings()
	settings.NumPublicConnections = 4
	settings.ShouldAdvertise = true
	settings.UsesPresence = true
	settings.Set("MatchType", "Deathmatch", online.ViaOnlineServiceAndPing)
	settings.Set("Secret", "hidden", online.DontAdvertise)

	if !hostSessions.CreateSession(host.id, online.GameSession, settings) {
		t.Fatal("expected create to be issued")
	}
	if hostSessions.CreateSession(host.id, online.GameSession, settings) {
		t.Error("expected a second create of the same session to be rejected")
	}
	poster.next(t)
	if named := hostSessions.NamedSession(online.GameSession); named == nil || named.State != online.Pending {
		t.Fatalf("expected a pending hosted session, got %+v", named)
	}

	search := online.NewSessionSearch()
	search.MaxSearchResults = 10
	search.Set("matchtype", "Deathmatch", online.Equals)
	search.Set(online.SearchPresence, "true", online.Equals)
	if !guestSessions.FindSessions(guest.id, search) {
		t.Fatal("expected find to be issued")
	}
	poster.next(t)
	if !found || search.State != online.SearchDone || len(search.SearchResults) != 1 {
		t.Fatalf("expected one result, got %+v", search)
	}
	result := search.SearchResults[0]
	if result.Session.OwningUserName != "alice" || result.Session.OwningUserID != host.id {
		t.Errorf("unexpected owner: %+v", result.Session)
	}
	if _, advertised := result.Session.Settings.Get("Secret"); advertised {
		t.Error("expected unadvertised settings to stay private")
	}

	// The host does not find its own session.
	own := online.NewSessionSearch()
	hostSessions.AddOnFindSessionsCompleteDelegate(func(bool) {})
	hostSessions.FindSessions(host.id, own)
	poster.next(t)
	if len(own.SearchResults) != 0 {
		t.Errorf("expected the host's search to skip its own session, got %d results", len(own.SearchResults))
	}

	guestSessions.JoinSession(guest.id, online.GameSession, result)
	poster.next(t)
	if joinResult != online.JoinSuccess {
		t.Fatalf("expected to join, got %s", joinResult)
	}
	if addr, ok := guestSessions.ResolvedConnectString(online.GameSession); !ok || addr != "10.0.0.5:7777" {
		t.Errorf("ResolvedConnectString() = %q, %v", addr, ok)
	}
	guestSessions.JoinSession(guest.id, online.GameSession, result)
	poster.next(t)
	if joinResult != online.JoinAlreadyInSession {
		t.Errorf("expected a second join to report AlreadyInSession, got %s", joinResult)
	}

	if !hostSessions.StartSession(online.GameSession) {
		t.Fatal("expected start to be issued")
	}
	poster.next(t)
	if named := hostSessions.NamedSession(online.GameSession); named.State != online.InProgress {
		t.Errorf("expected session in progress, got %s", named.State)
	}

	if !hostSessions.DestroySession(online.GameSession) {
		t.Fatal("expected destroy to be issued")
	}
	poster.next(t)
	if hostSessions.NamedSession(online.GameSession) != nil {
		t.Error("expected the hosted session to be gone")
	}
	if hostSessions.DestroySession(online.GameSession) || hostSessions.StartSession(online.GameSession) {
		t.Error("expected requests on a missing session to be rejected")
	}

	if row, _ := data.FindSession(db, result.Session.SessionID); row != nil {
		t.Error("expected the advertised row to be deleted")
	}
	if len(events) != 3 || events[0] != "created" || events[1] != "started" || events[2] != "destroyed" {
		t.Errorf("unexpected host events: %v", events)
	}
}

func TestSessions_JoinFailures(t *testing.T) {
	db := setUpDatabase(t)
	poster := newQueuePoster()
	host := loggedIn(t, db, poster, "alice")
	first := loggedIn(t, db, poster, "bob")
	second := loggedIn(t, db, poster, "carol")

	hostSessions := host.subsystem.sessions
	hostSessions.AddOnCreateSessionCompleteDelegate(func(string, bool) {})
	settings := online.NewSessionSettings()
	settings.NumPublicConnections = 1
	settings.ShouldAdvertise = true
	hostSessions.CreateSession(host.id, online.GameSession, settings)
	poster.next(t)

	id := hostSessions.NamedSession(online.GameSession).SessionID
	result := online.SearchResult{Session: online.Session{SessionID: id, OwningUserID: host.id}}

	join := func(p player, r online.SearchResult) online.JoinResult {
		t.Helper()
		var got online.JoinResult = -1
		p.subsystem.sessions.AddOnJoinSessionCompleteDelegate(func(name string, result online.JoinResult) { got = result })
		if !p.subsystem.sessions.JoinSession(p.id, online.GameSession, r) {
			t.Fatal("expected join to be issued")
		}
		poster.next(t)
		return got
	}

	if got := join(first, result); got != online.JoinSuccess {
		t.Fatalf("expected the first join to succeed, got %s", got)
	}
	if got := join(second, result); got != online.JoinSessionIsFull {
		t.Errorf("expected the session to be full, got %s", got)
	}

	missing := online.SearchResult{Session: online.Session{SessionID: "missing", OwningUserID: host.id}}
	if got := join(second, missing); got != online.JoinSessionDoesNotExist {
		t.Errorf("expected a missing session, got %s", got)
	}

	if second.subsystem.sessions.JoinSession(second.id, online.GameSession, online.SearchResult{}) {
		t.Error("expected a join without a session id to be rejected")
	}
}

func TestSessions_LeavingReleasesSlot(t *testing.T) {
	db := setUpDatabase(t)
	poster := newQueuePoster()
	host := loggedIn(t, db, poster, "alice")
	guest := loggedIn(t, db, poster, "bob")

	hostSessions := host.subsystem.sessions
	hostSessions.AddOnCreateSessionCompleteDelegate(func(string, bool) {})
	settings := online.NewSessionSettings()
	settings.NumPublicConnections = 1
	settings.ShouldAdvertise = true
	hostSessions.CreateSession(host.id, online.GameSession, settings)
	poster.next(t)

	id := hostSessions.NamedSession(online.GameSession).SessionID
	result := online.SearchResult{Session: online.Session{SessionID: id, OwningUserID: host.id}}

	guestSessions := guest.subsystem.sessions
	var joins []online.JoinResult
	guestSessions.AddOnJoinSessionCompleteDelegate(func(name string, result online.JoinResult) {
		joins = append(joins, result)
	})
	var destroyed []bool
	guestSessions.AddOnDestroySessionCompleteDelegate(func(name string, ok bool) {
		destroyed = append(destroyed, ok)
	})

	for i := 0; i < 3; i++ {
		guestSessions.JoinSession(guest.id, online.GameSession, result)
		poster.next(t)
		if !guestSessions.DestroySession(online.GameSession) {
			t.Fatalf("expected leave %d to be issued", i)
		}
		poster.next(t)
	}

	for i, got := range joins {
		if got != online.JoinSuccess {
			t.Errorf("join %d: expected Success, got %s", i, got)
		}
	}
	if len(destroyed) != 3 || !destroyed[0] || !destroyed[1] || !destroyed[2] {
		t.Errorf("unexpected leave outcomes: %v", destroyed)
	}
	if row, _ := data.FindSession(db, id); row == nil || row.NumOpenPublicConnections != 1 {
		t.Errorf("expected the slot to be given back, got %+v", row)
	}
}

func TestSessions_DestroyWhileCreating(t *testing.T) {
	db := setUpDatabase(t)
	poster := newQueuePoster()
	host := loggedIn(t, db, poster, "alice")
	hostSessions := host.subsystem.sessions

	var events []string
	hostSessions.AddOnCreateSessionCompleteDelegate(func(name string, ok bool) {
		events = append(events, fmt.Sprintf("created:%v", ok))
	})
	hostSessions.AddOnDestroySessionCompleteDelegate(func(name string, ok bool) {
		events = append(events, fmt.Sprintf("destroyed:%v", ok))
	})

	settings := online.NewSessionSettings()
	settings.NumPublicConnections = 2
	settings.ShouldAdvertise = true
	hostSessions.CreateSession(host.id, online.GameSession, settings)
	if !hostSessions.DestroySession(online.GameSession) {
		t.Fatal("expected destroy to be issued while the session is being created")
	}

	// Create completion, then the delete it issues.
	poster.next(t)
	poster.next(t)

	if hostSessions.NamedSession(online.GameSession) != nil {
		t.Error("expected the hosted session to be gone")
	}
	rows, err := data.FindJoinableSessions(db, false, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no advertised sessions, got %d", len(rows))
	}
	if len(events) != 2 || events[0] != "created:true" || events[1] != "destroyed:true" {
		t.Errorf("unexpected events: %v", events)
	}
}

func TestSubsystem_CloseLogsOut(t *testing.T) {
	db := setUpDatabase(t)
	poster := newQueuePoster()
	p := loggedIn(t, db, poster, "alice")

	if err := p.subsystem.Close(); err != nil {
		t.Fatalf("Close() returned an unexpected error: %v", err)
	}
	if p.subsystem.identity.LoginStatus(0) != online.NotLoggedIn {
		t.Error("expected Close to log the local user out")
	}
	if _, ok := p.subsystem.identity.PlayerName(p.id); ok {
		t.Error("expected the player to be dropped from presence")
	}
}

func TestOpen_RegisteredSubsystems(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Filename = filepath.Join(t.TempDir(), "lan.db")
	logger, _ := test.NewNullLogger()

	s, err := online.Open("null", online.Deps{Config: cfg, Logger: logger, Poster: newQueuePoster()})
	if err != nil {
		t.Fatalf("Open() returned an unexpected error: %v", err)
	}
	defer s.(*Subsystem).Close()

	if !online.IsLAN(s) {
		t.Error("expected the NULL subsystem to be a LAN subsystem")
	}
	if s.SessionInterface() == nil || s.IdentityInterface() == nil {
		t.Error("expected both capabilities")
	}

	if _, err := online.Open(Name, online.Deps{Config: cfg, Logger: logger}); err == nil {
		t.Error("expected an error without a poster")
	}
}
