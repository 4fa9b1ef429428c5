// Package creds defines the credential provider abstraction and its
// adapters.
//
// Credentials are opaque to everything except the request signer: they
// are fetched by reference id, never logged, and never serialized by
// any other subsystem.
package creds

// Credentials is an access/secret key pair for one endpoint.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Valid reports whether both halves of the pair are present.
func (c Credentials) Valid() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// String redacts the pair so accidental %v formatting never leaks keys.
func (c Credentials) String() string {
	return "creds.Credentials{REDACTED}"
}

// GoString redacts %#v formatting as well.
func (c Credentials) GoString() string {
	return c.String()
}

// Provider resolves opaque reference ids to credential pairs.
// The production adapter is FileVault; tests use Memory.
type Provider interface {
	// Load returns the credentials stored under ref.
	// A missing ref yields an errs.ErrKindNotFound error.
	Load(ref string) (Credentials, error)

	// Save stores the credentials under ref, replacing any previous pair.
	Save(c Credentials, ref string) error

	// Delete removes the credentials stored under ref. Best-effort:
	// no error is surfaced.
	Delete(ref string)
}
