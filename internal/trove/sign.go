package trove

import (
	"context"

	"github.com/CourtJesterG/conary/internal/external"
)

// Sign attaches a signature computed by signer over the trove's current
// digest, under the given key fingerprint. Recomputes the digest first so
// the signature always covers the live content.
func (t *Trove) Sign(ctx context.Context, signer external.Signer, fingerprint string) error {
	d := t.ComputeDigest()
	sig, err := signer.Sign(ctx, fingerprint, d.signableDigestBytes(t.DigestVersion))
	if err != nil {
		return err
	}
	t.Signatures = append(t.Signatures, Signature{KeyFingerprint: fingerprint, SigData: sig})
	t.AttachedDigest = &d
	return nil
}
