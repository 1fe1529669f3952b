// The mpsessions command hosts, browses and joins multiplayer sessions through
// the configured online subsystem, and manages the accounts players log in with.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var ConfigFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:           "mpsessions",
		Short:         "Multiplayer session host and browser",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&ConfigFlag, "config", "c", "./", "Path to the directory containing the config file")

	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountDeleteCmd)
	accountDeleteCmd.Flags().BoolVar(&PermanentFlag, "permanent", false, "Permanently delete the account (as opposed to a soft delete)")

	hostCmd.Flags().StringArrayVarP(&SettingFlags, "setting", "s", nil, "Advertised session setting as key=value (repeatable)")
	hostCmd.Flags().IntVarP(&ConnectionsFlag, "connections", "n", 0, "Number of public connections (defaults to the configured value)")
	hostCmd.Flags().BoolVar(&StartFlag, "start", false, "Start the session as soon as it has been created")

	browseCmd.Flags().IntVarP(&MaxResultsFlag, "max", "m", 0, "Maximum number of sessions to list (defaults to the configured value)")
	browseCmd.Flags().StringArrayVarP(&QueryFlags, "query", "q", nil, "Filter as key=op:value or key=value (repeatable)")

	rootCmd.AddCommand(accountCmd, hostCmd, browseCmd, joinCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
