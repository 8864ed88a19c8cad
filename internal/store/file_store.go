package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"quietwire/internal/domain"
)

// FileVault is a Keystore keeping one passphrase-encrypted file per label
// under a private directory.
type FileVault struct {
	home       string
	passphrase string
}

// NewFileVault opens (creating if needed) a vault rooted at home.
func NewFileVault(home, passphrase string) (*FileVault, error) {
	if err := os.MkdirAll(home, 0o700); err != nil {
		return nil, err
	}
	return &FileVault{home: home, passphrase: passphrase}, nil
}

var _ domain.Keystore = (*FileVault)(nil)

// path maps a label to a file, flattening separators so labels cannot
// escape the vault directory.
func (v *FileVault) path(label string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(label)
	return filepath.Join(v.home, safe+".qw")
}

// Store seals data under the vault passphrase and writes it atomically.
func (v *FileVault) Store(label string, data []byte) error {
	sealed, err := sealBlob(v.passphrase, label, data)
	if err != nil {
		return err
	}
	return writeFile(v.path(label), sealed, 0o600)
}

// Load reads and opens the blob for label; a missing label is (nil, false, nil).
func (v *FileVault) Load(label string) ([]byte, bool, error) {
	raw, err := os.ReadFile(v.path(label))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	pt, err := openBlob(v.passphrase, label, raw)
	if err != nil {
		return nil, false, err
	}
	return pt, true, nil
}

// Delete removes the blob for label. Deleting a missing label is not an error.
func (v *FileVault) Delete(label string) error {
	err := os.Remove(v.path(label))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// writeFile writes bytes via a temp file, then atomically replaces the target.
func writeFile(path string, b []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	// Best-effort cleanup if anything fails before rename.
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
