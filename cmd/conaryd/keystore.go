package main

import (
	"context"

	"github.com/CourtJesterG/conary/internal/external"
)

// noKeyStore is the demonstration binary's KeyStore: this CLI has no
// real OpenPGP integration (spec.md §1 treats the key parser as an
// opaque external collaborator), so every lookup reports unknown and
// every commit runs unsigned. A deployment wires a real KeyStore
// implementation in here instead.
type noKeyStore struct{}

func (noKeyStore) GetPublicKey(ctx context.Context, fingerprint string) (external.PublicKey, error) {
	return external.PublicKey{}, &external.KeyNotFound{Fingerprint: fingerprint}
}

func (noKeyStore) AddAsciiKey(ctx context.Context, ownerRole string, ascii string) error {
	return nil
}

func (noKeyStore) Verify(ctx context.Context, fingerprint string, digest, sig []byte) error {
	return &external.KeyNotFound{Fingerprint: fingerprint}
}
