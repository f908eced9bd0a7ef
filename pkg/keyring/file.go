package keyring

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/corvidchat/authkit/pkg/cryptox"
)

// File is a Keyring backed by a single JSON file whose values are sealed
// with AES-256-GCM under a passphrase-derived key. It serves hosts without
// an OS credential service.
type File struct {
	mu         sync.Mutex
	path       string
	passphrase string
}

type fileContents struct {
	Salt    string            `json:"salt"`
	Entries map[string]string `json:"entries"`
}

// NewFile returns a file keyring at path. The file is created lazily on the
// first Set.
func NewFile(path, passphrase string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("keyring: empty file path")
	}
	if passphrase == "" {
		return nil, fmt.Errorf("keyring: empty passphrase")
	}
	return &File{path: path, passphrase: passphrase}, nil
}

func (f *File) Get(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, box, err := f.load()
	if err != nil {
		return "", err
	}

	sealed, ok := contents.Entries[name]
	if !ok {
		return "", ErrNotFound
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("keyring: corrupt entry %q: %w", name, err)
	}

	value, err := box.Open(raw)
	if err != nil {
		return "", fmt.Errorf("keyring: failed to unseal %q: %w", name, err)
	}
	return string(value), nil
}

func (f *File) Set(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, box, err := f.load()
	if err != nil {
		return err
	}

	sealed, err := box.Seal([]byte(value))
	if err != nil {
		return fmt.Errorf("keyring: failed to seal %q: %w", name, err)
	}

	contents.Entries[name] = base64.StdEncoding.EncodeToString(sealed)
	contents.Salt = base64.StdEncoding.EncodeToString(box.Salt())
	return f.write(contents)
}

func (f *File) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, box, err := f.load()
	if err != nil {
		return err
	}

	if _, ok := contents.Entries[name]; !ok {
		return nil
	}

	delete(contents.Entries, name)
	contents.Salt = base64.StdEncoding.EncodeToString(box.Salt())
	return f.write(contents)
}

// load reads the backing file and prepares the seal box. A missing file
// yields an empty entry set and a fresh salt.
func (f *File) load() (*fileContents, *cryptox.SealBox, error) {
	contents := &fileContents{Entries: make(map[string]string)}

	data, err := os.ReadFile(f.path)
	switch {
	case os.IsNotExist(err):
		// fresh keyring
	case err != nil:
		return nil, nil, fmt.Errorf("keyring: failed to read %s: %w", f.path, err)
	default:
		if err := json.Unmarshal(data, contents); err != nil {
			return nil, nil, fmt.Errorf("keyring: corrupt file %s: %w", f.path, err)
		}
		if contents.Entries == nil {
			contents.Entries = make(map[string]string)
		}
	}

	var salt []byte
	if contents.Salt != "" {
		salt, err = base64.StdEncoding.DecodeString(contents.Salt)
		if err != nil {
			return nil, nil, fmt.Errorf("keyring: corrupt salt in %s: %w", f.path, err)
		}
	}

	box, err := cryptox.NewSealBox(f.passphrase, salt)
	if err != nil {
		return nil, nil, err
	}
	return contents, box, nil
}

// write persists contents atomically via a temp file rename.
func (f *File) write(contents *fileContents) error {
	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return fmt.Errorf("keyring: failed to encode contents: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".keyring-*")
	if err != nil {
		return fmt.Errorf("keyring: failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("keyring: failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("keyring: failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("keyring: failed to replace %s: %w", f.path, err)
	}
	return nil
}
