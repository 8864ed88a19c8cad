package store

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"quietwire/internal/domain"
)

// KeyringVault is a Keystore backed by the operating system keychain or
// secret service. The platform handles encryption at rest.
type KeyringVault struct {
	ring keyring.Keyring
}

// NewKeyringVault opens the platform keyring under the given service name.
func NewKeyringVault(serviceName string) (*KeyringVault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:             serviceName,
		KeychainName:            serviceName,
		KWalletAppID:            serviceName,
		KWalletFolder:           serviceName,
		WinCredPrefix:           serviceName,
		LibSecretCollectionName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.KWalletBackend,
			keyring.FileBackend,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return &KeyringVault{ring: ring}, nil
}

var _ domain.Keystore = (*KeyringVault)(nil)

// Store saves data under label.
func (v *KeyringVault) Store(label string, data []byte) error {
	return v.ring.Set(keyring.Item{Key: label, Data: data})
}

// Load retrieves the data for label; a missing label is (nil, false, nil).
func (v *KeyringVault) Load(label string) ([]byte, bool, error) {
	item, err := v.ring.Get(label)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("keyring get: %w", err)
	}
	return item.Data, true, nil
}

// Delete removes the entry for label. Deleting a missing label is not an error.
func (v *KeyringVault) Delete(label string) error {
	if err := v.ring.Remove(label); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("keyring remove: %w", err)
	}
	return nil
}
