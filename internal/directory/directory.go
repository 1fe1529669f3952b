// Package directory is an online subsystem backed by a shared database. Hosts
// advertise their sessions as rows that other players find, filter and join.
//
// It registers two subsystems: NULL, for LAN play on a sqlite file shared by the
// processes on one machine, and DIRECTORY, which uses the configured database
// engine (normally postgres shared across hosts).
//
// Backend calls are expected on the game thread. Database work runs on its own
// goroutine and every completion is posted back through the Poster.
package directory

import (
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dcrodman/mpsessions/internal/core"
	"github.com/dcrodman/mpsessions/internal/core/data"
	"github.com/dcrodman/mpsessions/internal/online"
)

// Name is the subsystem name of the database-backed online directory.
const Name = "DIRECTORY"

func init() {
	online.Register(online.NullSubsystem, factory(online.NullSubsystem, true))
	online.Register(Name, factory(Name, false))
}

func factory(name string, lan bool) online.Factory {
	return func(deps online.Deps) (online.Subsystem, error) {
		s, err := open(name, deps, lan)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Subsystem exposes the directory's identity and session services.
type Subsystem struct {
	name     string
	db       *gorm.DB
	identity *Identity
	sessions *Sessions
}

func open(name string, deps online.Deps, lan bool) (*Subsystem, error) {
	if deps.Config == nil {
		return nil, errors.New("directory requires a config")
	}
	if deps.Poster == nil {
		return nil, errors.New("directory requires a poster for completions")
	}

	cfg := *deps.Config
	if lan {
		// LAN sessions never leave the machine.
		cfg.Database.Engine = "sqlite"
	}
	db, err := data.Open(&cfg)
	if err != nil {
		return nil, err
	}
	return New(name, db, &cfg, deps.Poster, deps.Logger), nil
}

// New builds a directory subsystem on top of an open database.
func New(name string, db *gorm.DB, cfg *core.Config, poster online.Poster, logger *logrus.Logger) *Subsystem {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithField("component", "directory")
	identity := newIdentity(db, cfg, poster, entry)
	return &Subsystem{
		name:     name,
		db:       db,
		identity: identity,
		sessions: newSessions(db, cfg.ConnectAddress(), poster, identity, entry),
	}
}

func (s *Subsystem) Name() string { return s.name }

func (s *Subsystem) SessionInterface() online.SessionInterface { return s.sessions }

func (s *Subsystem) IdentityInterface() online.IdentityInterface { return s.identity }

// Close logs out every local user and releases the database connection.
func (s *Subsystem) Close() error {
	for localUser := range s.identity.players {
		s.identity.Logout(localUser)
	}
	return data.Close(s.db)
}

// runAsync performs work off the game thread and posts complete with its result.
func runAsync[T any](poster online.Poster, logger *logrus.Entry, work func() T, complete func(T)) {
	go func() {
		result := work()
		if !poster.Post(func() { complete(result) }) {
			logger.Warn("dropping completion: game thread has stopped")
		}
	}()
}
