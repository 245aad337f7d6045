package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups this app's secrets in the OS keychain.
const KeyringService = "jobmatch"

// IMAPAccount is the keychain account name for a mail-feed source.
func IMAPAccount(username, host string) string {
	return fmt.Sprintf("jobmatch:imap:%s@%s", username, host)
}

// GetIMAPPassword resolves a mail-feed password: keychain first, then the
// JOBMATCH_IMAP_PASSWORD environment variable as a headless fallback.
func GetIMAPPassword(account string) (string, error) {
	if strings.TrimSpace(account) != "" {
		pw, err := keyring.Get(KeyringService, account)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}
	if pw := os.Getenv("JOBMATCH_IMAP_PASSWORD"); strings.TrimSpace(pw) != "" {
		return pw, nil
	}
	return "", errors.New("IMAP password not found (set it in the keychain or via JOBMATCH_IMAP_PASSWORD)")
}

func SetIMAPPassword(account, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, account, password)
}

func DeleteIMAPPassword(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}
