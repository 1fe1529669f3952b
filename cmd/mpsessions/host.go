package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Creates and advertises a session until interrupted",
	Args:  cobra.NoArgs,
	RunE:  HostCommand,
}

var (
	SettingFlags    []string
	ConnectionsFlag int
	StartFlag       bool
)

func parseSettingFlags(flags []string) (map[string]string, error) {
	settings := make(map[string]string, len(flags))
	for _, flag := range flags {
		key, value, ok := strings.Cut(flag, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed setting %q, expected key=value", flag)
		}
		settings[key] = value
	}
	return settings, nil
}

func HostCommand(cmd *cobra.Command, args []string) error {
	settings, err := parseSettingFlags(SettingFlags)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}

	return a.run(func(done func()) {
		a.manager.OnCreateSessionComplete.Add(func(ok bool) {
			if !ok {
				a.fail(done, errors.New("session could not be created"))
				return
			}
			addr, _ := a.manager.ResolvedConnectString()
			fmt.Printf("hosting session at %s, press Ctrl-C to stop\n", addr)
			if StartFlag && !a.manager.StartSession() {
				a.logger.Warn("session could not be started")
			}
		})
		a.manager.OnStartSessionComplete.Add(func(ok bool) {
			if ok {
				fmt.Println("session started")
			} else {
				a.logger.Warn("session could not be started")
			}
		})

		a.manager.CreateSession(ConnectionsFlag, settings)
	}, a.leave)
}
