package credential

import (
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "orderwatch"

// KeyIMAPPassword is the keyring entry for the mailbox app password.
const KeyIMAPPassword = "imap-password"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/orderwatch/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("orderwatch-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// ResolvePassword returns the mailbox password from the first source
// that has one: the explicit config value, the OS keyring, then the
// PASSWORD environment variable. The value is opaque and must never be
// logged.
func ResolvePassword(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if v, err := Get(KeyIMAPPassword); err == nil && v != "" {
		return v, nil
	}
	if v := os.Getenv("PASSWORD"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no mailbox password configured: set it in config, run 'orderwatch auth set', or export PASSWORD")
}
