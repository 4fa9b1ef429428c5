package creds

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/kavinraju/cirrus/internal/errs"
)

// FileVault is a Provider backed by one JSON file per reference id
// under a private directory. It stands in for the OS secret store of
// the desktop original: file mode 0600, directory mode 0700.
type FileVault struct {
	dir string
}

// storedPair is the on-disk shape. Kept separate from Credentials so
// the value type itself never grows serialization tags.
type storedPair struct {
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// NewFileVault opens (creating if necessary) the vault directory.
func NewFileVault(dir string) (*FileVault, error) {
	if dir == "" {
		return nil, errs.New(errs.ErrKindConfiguration, "vault directory not set")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errs.Wrap(errs.ErrKindStore, "failed to create vault directory", err)
	}
	return &FileVault{dir: dir}, nil
}

// Load implements Provider.
func (v *FileVault) Load(ref string) (Credentials, error) {
	path, err := v.refPath(ref)
	if err != nil {
		return Credentials{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, errs.New(errs.ErrKindNotFound, "no credentials stored for ref "+ref)
		}
		return Credentials{}, errs.Wrap(errs.ErrKindStore, "failed to read credentials", err)
	}

	var pair storedPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return Credentials{}, errs.Wrap(errs.ErrKindConfiguration, "stored credentials are malformed", err)
	}

	c := Credentials{AccessKey: pair.AccessKey, SecretKey: pair.SecretKey}
	if !c.Valid() {
		return Credentials{}, errs.New(errs.ErrKindConfiguration, "stored credentials are incomplete")
	}
	return c, nil
}

// Save implements Provider.
func (v *FileVault) Save(c Credentials, ref string) error {
	path, err := v.refPath(ref)
	if err != nil {
		return err
	}
	if !c.Valid() {
		return errs.New(errs.ErrKindConfiguration, "refusing to store incomplete credentials")
	}

	raw, err := json.Marshal(storedPair{AccessKey: c.AccessKey, SecretKey: c.SecretKey})
	if err != nil {
		return errs.Wrap(errs.ErrKindStore, "failed to encode credentials", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return errs.Wrap(errs.ErrKindStore, "failed to write credentials", err)
	}
	return nil
}

// Delete implements Provider. Errors are swallowed on purpose.
func (v *FileVault) Delete(ref string) {
	path, err := v.refPath(ref)
	if err != nil {
		return
	}
	_ = os.Remove(path)
}

// refPath validates ref and maps it to the backing file. Refs must not
// contain path separators so a ref can never escape the vault directory.
func (v *FileVault) refPath(ref string) (string, error) {
	if ref == "" || strings.ContainsAny(ref, "/\\") || ref == "." || ref == ".." {
		return "", errs.New(errs.ErrKindConfiguration, "invalid credentials ref")
	}
	return filepath.Join(v.dir, ref+".json"), nil
}
