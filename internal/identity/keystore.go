package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/Klingon-tech/statetransfer/internal/log"
)

const keystoreVersion = 1

var (
	ErrIdentityExists   = errors.New("identity already exists")
	ErrIdentityNotFound = errors.New("identity not found")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// keystoreFile is the on-disk JSON format of one encrypted identity.
type keystoreFile struct {
	Version    int            `json:"version"`
	CreatedAt  time.Time      `json:"created_at"`
	SealedSeed []byte         `json:"sealed_seed"`
	Accounts   []AccountEntry `json:"accounts"`
}

// AccountEntry records a derived account and its public key.
type AccountEntry struct {
	Index     uint32 `json:"index"`
	Label     string `json:"label,omitempty"`
	PublicKey string `json:"public_key"` // hex, compressed
}

// Keystore stores seeds encrypted on disk, one file per named identity.
type Keystore struct {
	dir string
}

// NewKeystore opens a keystore directory, creating it if needed.
func NewKeystore(dir string) (*Keystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{dir: dir}, nil
}

func (ks *Keystore) path(name string) (string, error) {
	if !validName.MatchString(name) {
		return "", fmt.Errorf("invalid identity name %q", name)
	}
	return filepath.Join(ks.dir, name+".identity"), nil
}

// Create seals seed under password and writes a new keystore entry.
func (ks *Keystore) Create(name string, seed, password []byte, params KDFParams) error {
	if len(seed) != SeedSize {
		return fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidIdentityFormat, SeedSize, len(seed))
	}
	path, err := ks.path(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %q", ErrIdentityExists, name)
	}

	sealed, err := seal(seed, password, params)
	if err != nil {
		return fmt.Errorf("seal seed: %w", err)
	}
	kf := keystoreFile{
		Version:    keystoreVersion,
		CreatedAt:  time.Now().UTC(),
		SealedSeed: sealed,
		Accounts:   []AccountEntry{},
	}
	if err := ks.write(path, &kf); err != nil {
		return err
	}
	log.Identity.Info().Str("name", name).Msg("Identity created")
	return nil
}

// Seed decrypts and returns the stored seed.
func (ks *Keystore) Seed(name string, password []byte) ([]byte, error) {
	kf, err := ks.read(name)
	if err != nil {
		return nil, err
	}
	seed, err := open(kf.SealedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("unlock %q: %w", name, err)
	}
	return seed, nil
}

// Identity decrypts the seed and derives the identity for account.
func (ks *Keystore) Identity(name string, password []byte, account uint32) (Identity, error) {
	seed, err := ks.Seed(name, password)
	if err != nil {
		return Identity{}, err
	}
	defer clear(seed)
	return FromSeedAccount(seed, account)
}

// AddAccount records account metadata. Re-adding the same index with the
// same public key is a no-op.
func (ks *Keystore) AddAccount(name string, acct AccountEntry) error {
	kf, err := ks.read(name)
	if err != nil {
		return err
	}
	for _, existing := range kf.Accounts {
		if existing.Index == acct.Index {
			if existing.PublicKey == acct.PublicKey {
				return nil
			}
			return fmt.Errorf("account %d already recorded with a different key", acct.Index)
		}
	}
	kf.Accounts = append(kf.Accounts, acct)
	path, _ := ks.path(name)
	return ks.write(path, kf)
}

// Accounts returns the recorded accounts of an identity.
func (ks *Keystore) Accounts(name string) ([]AccountEntry, error) {
	kf, err := ks.read(name)
	if err != nil {
		return nil, err
	}
	return kf.Accounts, nil
}

// List returns the names of all stored identities.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.dir)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ext := filepath.Ext(name); ext == ".identity" {
			names = append(names, name[:len(name)-len(ext)])
		}
	}
	return names, nil
}

// Delete removes a stored identity.
func (ks *Keystore) Delete(name string) error {
	path, err := ks.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %q", ErrIdentityNotFound, name)
		}
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

func (ks *Keystore) write(path string, kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return nil
}

func (ks *Keystore) read(name string) (*keystoreFile, error) {
	path, err := ks.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrIdentityNotFound, name)
		}
		return nil, fmt.Errorf("read identity: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse identity: %w", err)
	}
	if kf.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported keystore version: %d", kf.Version)
	}
	return &kf, nil
}
