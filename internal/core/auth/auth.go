// Package auth verifies and manages the accounts players log in with.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/dcrodman/mpsessions/internal/core/data"
)

var (
	ErrUnknown            = errors.New("an unexpected error occurred, please contact your server administrator")
	ErrInvalidCredentials = errors.New("username/combination password not found")
	ErrAccountBanned      = errors.New("this account has been suspended")
	ErrAccountNotFound    = errors.New("account not found")
)

// Database seams, replaced in tests.
var (
	findAccount              = data.FindAccountByUsername
	createAccount            = data.CreateAccount
	softDeleteAccount        = data.DeleteAccount
	permanentlyDeleteAccount = data.PermanentlyDeleteAccount
)

// VerifyAccount checks the Accounts table for the specified credentials
// combination and validates that the account is accessible.
func VerifyAccount(db *gorm.DB, username, password string) (*data.Account, error) {
	account, err := findAccount(db, username)
	if err != nil {
		return nil, ErrUnknown
	}

	if account == nil || account.Password != HashPassword(password) {
		return nil, ErrInvalidCredentials
	} else if account.Banned || !account.Active {
		return nil, ErrAccountBanned
	}

	return account, nil
}

// CreateAccount takes the specified credentials and creates a new record in
// the database, returning either the result or any errors encountered.
func CreateAccount(db *gorm.DB, username, password, email string) (*data.Account, error) {
	account := &data.Account{
		Username: username,
		Password: HashPassword(password),
		Email:    email,
		Active:   true,
	}

	if err := createAccount(db, account); err != nil {
		return nil, err
	}

	return account, nil
}

// DeleteAccount soft-deletes the account with the given username.
func DeleteAccount(db *gorm.DB, username string) error {
	account, err := lookup(db, username)
	if err != nil {
		return err
	}
	return softDeleteAccount(db, account)
}

// PermanentlyDeleteAccount removes the account with the given username for good.
func PermanentlyDeleteAccount(db *gorm.DB, username string) error {
	account, err := lookup(db, username)
	if err != nil {
		return err
	}
	return permanentlyDeleteAccount(db, account)
}

func lookup(db *gorm.DB, username string) (*data.Account, error) {
	account, err := findAccount(db, username)
	if err != nil {
		return nil, fmt.Errorf("error looking up account %s: %w", username, err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// HashPassword returns a version of password with the directory's chosen hashing strategy.
func HashPassword(password string) string {
	hash := sha256.New()
	hash.Write(stripPadding([]byte(password)))
	return hex.EncodeToString(hash.Sum(nil)[:])
}

func stripPadding(b []byte) []byte {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0 {
			return b[:i+1]
		}
	}
	return b
}
