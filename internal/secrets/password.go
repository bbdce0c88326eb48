// Package secrets keeps the job board password in the OS keychain so it
// does not have to live in the config file or the environment.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jakopako/goapply/internal/config"
	"github.com/zalando/go-keyring"
)

// KeyringService groups the app's secrets in the OS keychain.
const KeyringService = "goapply"

var ErrPasswordNotFound = errors.New("password not found (set it in the keychain or via LINKEDIN_PASSWORD)")

// KeyringAccount is the keychain account name for the board login email.
func KeyringAccount(email string) string {
	return fmt.Sprintf("goapply:board:%s", strings.ToLower(strings.TrimSpace(email)))
}

func GetPassword(email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", errors.New("email is empty")
	}
	pw, err := keyring.Get(KeyringService, KeyringAccount(email))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrPasswordNotFound
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(pw) == "" {
		return "", ErrPasswordNotFound
	}
	return pw, nil
}

func SetPassword(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return errors.New("email is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, KeyringAccount(email), password)
}

func DeletePassword(email string) error {
	if strings.TrimSpace(email) == "" {
		return errors.New("email is empty")
	}
	return keyring.Delete(KeyringService, KeyringAccount(email))
}

// ResolvePassword returns the password from the configuration, falling back
// to the keychain.
func ResolvePassword(ac config.AccountConfig) (string, error) {
	if ac.Password != "" {
		return ac.Password, nil
	}
	return GetPassword(ac.Email)
}
