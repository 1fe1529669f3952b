package directory

import (
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dcrodman/mpsessions/internal/core"
	"github.com/dcrodman/mpsessions/internal/core/auth"
	"github.com/dcrodman/mpsessions/internal/online"
)

// Credential types accepted by Login.
const (
	// ID and Token are the account's username and password.
	DeveloperAuth = "developer"
	// Like DeveloperAuth, falling back to the configured account when ID is blank.
	AccountPortalAuth = "accountportal"
)

// Identity logs local users into directory accounts. Logged in players are kept
// in a presence cache and are logged out once they have been idle for the
// configured TTL.
type Identity struct {
	db     *gorm.DB
	poster online.Poster
	logger *logrus.Entry

	username, password string

	// Player id -> account username.
	presence *cache.Cache
	// Local user -> player id.
	players   map[int]online.UniqueNetID
	delegates online.DelegateList[online.LoginCompleteFunc]
}

func newIdentity(db *gorm.DB, cfg *core.Config, poster online.Poster, logger *logrus.Entry) *Identity {
	ttl := cfg.Directory.PresenceTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Identity{
		db:       db,
		poster:   poster,
		logger:   logger,
		username: cfg.Online.Username,
		password: cfg.Online.Password,
		presence: cache.New(ttl, time.Minute),
		players:  make(map[int]online.UniqueNetID),
	}
}

func (i *Identity) UniquePlayerID(localUser int) (online.UniqueNetID, bool) {
	id, ok := i.players[localUser]
	if !ok {
		return "", false
	}
	if _, present := i.presence.Get(string(id)); !present {
		return "", false
	}
	return id, true
}

func (i *Identity) LoginStatus(localUser int) online.LoginStatus {
	if _, ok := i.UniquePlayerID(localUser); ok {
		return online.LoggedIn
	}
	return online.NotLoggedIn
}

// PlayerName returns the account username of a logged in player.
func (i *Identity) PlayerName(id online.UniqueNetID) (string, bool) {
	name, ok := i.presence.Get(string(id))
	if !ok {
		return "", false
	}
	return name.(string), true
}

// touch keeps a player's presence alive.
func (i *Identity) touch(id online.UniqueNetID) {
	if name, ok := i.presence.Get(string(id)); ok {
		i.presence.SetDefault(string(id), name)
	}
}

// AutoLogin logs in with the account configured through online.username and
// online.password.
func (i *Identity) AutoLogin(localUser int) bool {
	if i.username == "" {
		i.logger.Warn("auto-login requested but no account is configured")
		return false
	}
	return i.login(localUser, i.username, i.password)
}

func (i *Identity) Login(localUser int, credentials online.Credentials) bool {
	switch strings.ToLower(credentials.Type) {
	case DeveloperAuth:
		return i.login(localUser, credentials.ID, credentials.Token)
	case AccountPortalAuth:
		if credentials.ID == "" {
			return i.AutoLogin(localUser)
		}
		return i.login(localUser, credentials.ID, credentials.Token)
	default:
		i.logger.Warnf("unsupported credential type %q", credentials.Type)
		return false
	}
}

type loginResult struct {
	id       online.UniqueNetID
	username string
	err      error
}

func (i *Identity) login(localUser int, username, password string) bool {
	if username == "" {
		return false
	}

	runAsync(i.poster, i.logger, func() loginResult {
		account, err := auth.VerifyAccount(i.db, username, password)
		if err != nil {
			return loginResult{err: err}
		}
		return loginResult{
			id:       online.UniqueNetID(strconv.FormatUint(uint64(account.ID), 10)),
			username: account.Username,
		}
	}, func(r loginResult) {
		i.onLoginComplete(localUser, r)
	})
	return true
}

func (i *Identity) onLoginComplete(localUser int, r loginResult) {
	ok := r.err == nil
	errMsg := ""
	if ok {
		i.logger.Infof("account %s logged in as player %s", r.username, r.id)
		i.players[localUser] = r.id
		i.presence.SetDefault(string(r.id), r.username)
	} else {
		i.logger.Warnf("login failed for local user %d: %v", localUser, r.err)
		errMsg = r.err.Error()
	}

	for _, fn := range i.delegates.Snapshot() {
		fn(localUser, ok, r.id, errMsg)
	}
}

// Logout forgets the local user's login.
func (i *Identity) Logout(localUser int) {
	if id, ok := i.players[localUser]; ok {
		i.presence.Delete(string(id))
		delete(i.players, localUser)
	}
}

func (i *Identity) AddOnLoginCompleteDelegate(localUser int, fn online.LoginCompleteFunc) online.DelegateHandle {
	return i.delegates.Add(fn)
}

func (i *Identity) ClearOnLoginCompleteDelegate(localUser int, handle online.DelegateHandle) {
	i.delegates.Remove(handle)
}
