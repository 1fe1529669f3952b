package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dcrodman/mpsessions/internal/query"
	"github.com/dcrodman/mpsessions/internal/sessions"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Lists the sessions that can be joined",
	Args:  cobra.NoArgs,
	RunE:  BrowseCommand,
}

var (
	MaxResultsFlag int
	QueryFlags     []string
)

func parseQueryFlags(flags []string) (map[string]query.Setting, error) {
	settings := make(map[string]query.Setting, len(flags))
	for _, flag := range flags {
		key, setting, err := query.ParseSetting(flag)
		if err != nil {
			return nil, err
		}
		settings[key] = setting
	}
	return settings, nil
}

func BrowseCommand(cmd *cobra.Command, args []string) error {
	filters, err := parseQueryFlags(QueryFlags)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}

	return a.run(func(done func()) {
		a.find(done, filters, func(results []sessions.SearchResult) {
			printResults(results)
			done()
		})
	}, nil)
}

// find logs in, searches, and hands the results to fn on the loop.
func (a *app) find(done func(), filters map[string]query.Setting, fn func([]sessions.SearchResult)) {
	maxResults := MaxResultsFlag
	if maxResults <= 0 {
		maxResults = a.cfg.Sessions.DefaultMaxResults
	}

	a.whenLoggedIn(done, func() {
		var id sessions.ListenerID
		id = a.manager.OnFindSessionsComplete.Add(func(c sessions.FindComplete) {
			a.manager.OnFindSessionsComplete.Remove(id)
			if !c.Success {
				a.fail(done, errors.New("session search failed"))
				return
			}
			fn(c.Results)
		})
		a.manager.FindSessionsWithQuery(maxResults, filters)
	})
}

func printResults(results []sessions.SearchResult) {
	if len(results) == 0 {
		fmt.Println("no sessions found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOWNER\tOPEN\tPING\tSETTINGS")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", r.ID, r.OwningUserName, r.OpenSlots, r.PingInMs, formatSettings(r.Settings))
	}
	w.Flush()
}

func formatSettings(settings map[string]string) string {
	pairs := make([]string, 0, len(settings))
	for k, v := range settings {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, " ")
}
