// Package external defines the collaborator interfaces the core consumes
// but does not implement: the PGP key parser, the wire transport to
// remote repositories, and the local client install database used for
// affinity-aware queries.
package external

import "context"

// KeyNotFound is returned by KeyStore.GetPublicKey when no key with the
// requested fingerprint is known.
type KeyNotFound struct{ Fingerprint string }

func (e *KeyNotFound) Error() string { return "key not found: " + e.Fingerprint }

// PublicKey is the opaque key material returned by a KeyStore; the core
// never parses OpenPGP packets itself.
type PublicKey struct {
	Fingerprint string
	KeyData     []byte
}

// KeyStore verifies and returns key material by fingerprint. It is an
// external collaborator: the core treats the PGP key parser as opaque.
type KeyStore interface {
	// GetPublicKey returns the public key for fingerprint, or a
	// *KeyNotFound error.
	GetPublicKey(ctx context.Context, fingerprint string) (PublicKey, error)
	// AddAsciiKey registers an ASCII-armored key owned by ownerRole.
	AddAsciiKey(ctx context.Context, ownerRole string, ascii string) error
	// Verify checks sig over digest using the key identified by
	// fingerprint, returning nil if valid.
	Verify(ctx context.Context, fingerprint string, digest, sig []byte) error
}

// TransportError wraps a failed remote call; the query layer retries on
// this error kind with exponential backoff.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string { return "transport call " + e.Method + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Transport reaches a remote repository over whatever wire protocol the
// deployment uses (HTTP/XML-RPC in the reference implementation; out of
// this core's scope).
type Transport interface {
	Call(ctx context.Context, method string, args interface{}) (result interface{}, err error)
}

// TroveTuple is the minimal (name, version, flavor) identity used by
// affinity lookups against the local client database.
type TroveTuple struct {
	Name    string
	Version string // frozen version
	Flavor  string // frozen flavor
}

// LocalDb is the client's local install database, consulted for
// affinity-aware queries.
type LocalDb interface {
	TrovesByName(ctx context.Context, name string) ([]TroveTuple, error)
}

// Signer produces an OpenPGP signature over digest using a private key
// identified by fingerprint. Like KeyStore, it is an external
// collaborator — the core never touches private key material directly.
type Signer interface {
	Sign(ctx context.Context, fingerprint string, digest []byte) (sig []byte, err error)
}
