package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/mpsessions/internal/core"
	"github.com/dcrodman/mpsessions/internal/core/debug"
	"github.com/dcrodman/mpsessions/internal/core/loop"
	_ "github.com/dcrodman/mpsessions/internal/directory"
	"github.com/dcrodman/mpsessions/internal/online"
	"github.com/dcrodman/mpsessions/internal/sessions"
)

// app is the state shared by the session commands. Everything but the loop
// itself is only touched from tasks running on the loop.
type app struct {
	cfg       *core.Config
	logger    *logrus.Logger
	loop      *loop.Loop
	subsystem online.Subsystem
	manager   *sessions.Manager

	err error
}

func newApp() (*app, error) {
	cfg, err := core.LoadConfig(ConfigFlag)
	if err != nil {
		return nil, err
	}
	logger, err := core.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Debugging.Enabled {
		debug.StartPprofServer(logger, cfg.Debugging.PprofPort)
	}

	l := loop.New()
	subsystem, err := online.Open(cfg.Online.Subsystem, online.Deps{Config: cfg, Logger: logger, Poster: l})
	if err != nil {
		return nil, err
	}

	manager := sessions.NewManager(subsystem, nil, logger, sessions.Options{
		LocalUser:                cfg.Online.LocalUser,
		DefaultPublicConnections: cfg.Sessions.DefaultPublicConnections,
		AuthType:                 cfg.Online.AuthType,
		FallbackCredentials: online.Credentials{
			Type:  cfg.Online.FallbackAuthType,
			ID:    cfg.Online.Username,
			Token: cfg.Online.Password,
		},
	})
	return &app{cfg: cfg, logger: logger, loop: l, subsystem: subsystem, manager: manager}, nil
}

// run drives the loop from start until done is called. On Ctrl-C, interrupted
// is run on the loop so the command can clean up before calling done; without
// one the loop stops right away. A second Ctrl-C exits immediately.
func (a *app) run(start func(done func()), interrupted func(done func())) error {
	defer a.close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)
	go a.exitHandler(ctx, cancel, c, interrupted)

	a.loop.Post(func() { start(cancel) })
	if err := a.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return a.err
}

func (a *app) exitHandler(ctx context.Context, cancel func(), c chan os.Signal, interrupted func(done func())) {
	select {
	case <-ctx.Done():
		return
	case <-c:
	}
	fmt.Println("waiting to shut down gracefully...")

	if interrupted == nil || !a.loop.Post(func() { interrupted(cancel) }) {
		cancel()
		return
	}

	select {
	case <-c:
		fmt.Println("hard exiting (killed)")
		os.Exit(1)
	case <-ctx.Done():
	}
}

// close releases the online subsystem once the loop has stopped.
func (a *app) close() {
	c, ok := a.subsystem.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		a.logger.Warnf("error closing online subsystem: %v", err)
	}
}

// fail records err as the command's result and stops the loop.
func (a *app) fail(done func(), err error) {
	if a.err == nil {
		a.err = err
	}
	done()
}

// whenLoggedIn runs fn on the loop once the local user is logged in.
func (a *app) whenLoggedIn(done func(), fn func()) {
	if !a.manager.Login() {
		a.fail(done, errors.New("could not log in: check the online.* settings"))
		return
	}
	if a.manager.LoggedIn() {
		fn()
		return
	}

	var id sessions.ListenerID
	id = a.manager.OnLoginComplete.Add(func(ok bool) {
		a.manager.OnLoginComplete.Remove(id)
		if !ok {
			a.fail(done, errors.New("login failed"))
			return
		}
		fn()
	})
}

// leave destroys the game session, if there is one, before stopping.
func (a *app) leave(done func()) {
	if a.manager.SessionState() == sessions.Absent {
		done()
		return
	}
	a.manager.OnDestroySessionComplete.Add(func(ok bool) {
		if !ok {
			a.logger.Warn("session could not be destroyed cleanly")
		}
		done()
	})
	a.manager.DestroySession()
}
