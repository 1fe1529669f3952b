package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/dcrodman/mpsessions/internal/core"
	"github.com/dcrodman/mpsessions/internal/core/auth"
	"github.com/dcrodman/mpsessions/internal/core/data"
	"github.com/dcrodman/mpsessions/internal/online"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Account management tools",
}

var accountAddCmd = &cobra.Command{
	Use:   "add [username] [password] [email]",
	Short: "Registers new accounts in the database",
	Args:  cobra.MaximumNArgs(3),
	RunE:  AccountAddCommand,
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete [username]",
	Short: "Deletes accounts from the database",
	Args:  cobra.MaximumNArgs(1),
	RunE:  AccountDeleteCommand,
}

var PermanentFlag bool

// initDB opens the database the configured online subsystem keeps its accounts in.
func initDB() (*gorm.DB, error) {
	cfg, err := core.LoadConfig(ConfigFlag)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(cfg.Online.Subsystem, online.NullSubsystem) {
		cfg.Database.Engine = "sqlite"
	}
	return data.Open(cfg)
}

func AccountAddCommand(cmd *cobra.Command, args []string) error {
	db, err := initDB()
	if err != nil {
		return err
	}
	defer data.Close(db)

	var username, password, email string
	username, args = popArg(args, "Username")
	password, args = popArg(args, "Password")
	email, _ = popArg(args, "Email")

	if username == "" || password == "" {
		return fmt.Errorf("a username and password are required")
	}

	existing, err := data.FindAccountByUsername(db, username)
	if err != nil {
		return fmt.Errorf("error looking up account: %w", err)
	} else if existing != nil {
		fmt.Printf("account '%s' already exists; skipping\n", username)
		return nil
	}

	account, err := auth.CreateAccount(db, username, password, email)
	if err != nil {
		return fmt.Errorf("error creating account: %w", err)
	}
	fmt.Printf("created account '%s' (ID: %d)\n", account.Username, account.ID)
	return nil
}

func AccountDeleteCommand(cmd *cobra.Command, args []string) error {
	db, err := initDB()
	if err != nil {
		return err
	}
	defer data.Close(db)

	username, _ := popArg(args, "Username")
	if PermanentFlag {
		err = auth.PermanentlyDeleteAccount(db, username)
	} else {
		err = auth.DeleteAccount(db, username)
	}
	if err != nil {
		return fmt.Errorf("error deleting account '%s': %w", username, err)
	}
	fmt.Printf("deleted account '%s'\n", username)
	return nil
}

func popArg(args []string, prompt string) (string, []string) {
	if len(args) == 1 {
		return args[0], nil
	} else if len(args) > 1 {
		return args[0], args[1:]
	}

	fmt.Printf("%s: ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text()), args
}
