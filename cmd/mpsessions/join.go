package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dcrodman/mpsessions/internal/online"
	"github.com/dcrodman/mpsessions/internal/sessions"
)

var joinCmd = &cobra.Command{
	Use:   "join <session-id>",
	Short: "Joins a session and prints the address to connect to",
	Args:  cobra.ExactArgs(1),
	RunE:  JoinCommand,
}

func JoinCommand(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	a, err := newApp()
	if err != nil {
		return err
	}

	return a.run(func(done func()) {
		a.manager.OnJoinSessionComplete.Add(func(c sessions.JoinComplete) {
			if c.Result != online.JoinSuccess {
				a.fail(done, fmt.Errorf("could not join session %s: %s", sessionID, c.Result))
				return
			}
			addr, ok := a.manager.ResolvedConnectString()
			if !ok {
				a.fail(done, fmt.Errorf("could not resolve the address of session %s", sessionID))
				return
			}
			fmt.Printf("joined session %s, connect to %s (Ctrl-C to leave)\n", sessionID, addr)
		})

		a.find(done, nil, func(results []sessions.SearchResult) {
			for _, r := range results {
				if r.ID == sessionID {
					a.manager.JoinSession(r)
					return
				}
			}
			a.fail(done, fmt.Errorf("session %s was not found", sessionID))
		})
	}, a.leave)
}
