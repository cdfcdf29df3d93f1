package trove

import (
	"bytes"
	"context"
	"crypto/sha1"
	"crypto/sha256"

	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/external"
)

// canonicalBytes serializes the signable fields in the fixed order
// required by §4.3: name, version, flavor, sorted file manifest by
// pathId, sorted sub-trove refs, frozen provides, frozen requires,
// frozen build-reqs, canonical metadata.
func (t *Trove) canonicalBytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(t.Name)
	buf.WriteByte(0)
	buf.WriteString(t.Version.String())
	buf.WriteByte(0)
	buf.WriteString(t.Flavor.String())
	buf.WriteByte(0)

	for _, e := range t.SortedManifest() {
		buf.Write(e.PathID[:])
		buf.WriteString(e.Path)
		buf.Write(e.FileID[:])
		buf.WriteString(e.Version.String())
		buf.WriteByte(0)
	}
	for _, r := range t.SortedSubTroves() {
		buf.WriteString(r.Name)
		buf.WriteString(r.Version.String())
		buf.WriteString(r.Flavor.String())
		if r.ByDefault {
			buf.WriteByte(1)
		}
		if r.IsStrongRef {
			buf.WriteByte(1)
		}
		buf.WriteByte(0)
	}
	buf.Write(t.Provides.Freeze())
	buf.Write(t.Requires.Freeze())
	for _, br := range t.BuildRequires {
		buf.WriteString(br.Name)
		buf.WriteString(br.Version.String())
		buf.WriteString(br.Flavor.String())
		buf.WriteByte(0)
	}
	for _, m := range t.Metadata {
		buf.WriteString(m.Key)
		buf.WriteByte('=')
		buf.WriteString(m.Value)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// Digest is the set of content digests over a trove's canonical form.
type Digest struct {
	SHA1   [20]byte
	SHA256 [32]byte // populated only when DigestVersion >= 1
}

// ComputeDigest recomputes the digest(s) implied by t.DigestVersion.
func (t *Trove) ComputeDigest() Digest {
	canon := t.canonicalBytes()
	d := Digest{SHA1: sha1.Sum(canon)}
	if t.DigestVersion >= 1 {
		d.SHA256 = sha256.Sum256(canon)
	}
	return d
}

// signableDigestBytes returns the bytes an OpenPGP signature is computed
// over: the SHA-1 digest, or SHA-1||SHA-256 for trove-info version >= 1.
func (d Digest) signableDigestBytes(version int) []byte {
	if version >= 1 {
		out := make([]byte, 0, 52)
		out = append(out, d.SHA1[:]...)
		out = append(out, d.SHA256[:]...)
		return out
	}
	return d.SHA1[:]
}

// VerifyDigests recomputes digests and checks every attached signature.
// Returns an IntegrityError-kind error if any digest disagrees or any
// signature is invalid under a known key. A signature from an unknown
// key is reported via the returned unknownKeys slice but is not fatal
// unless strict is true.
func (t *Trove) VerifyDigests(ctx context.Context, ks external.KeyStore, strict bool) (unknownKeys []string, err error) {
	want := t.ComputeDigest()
	got := t.attachedDigest()
	if want.SHA1 != got.SHA1 {
		return nil, errs.New(errs.KindIntegrity, "trove digest mismatch (SHA-1)")
	}
	if t.DigestVersion >= 1 && want.SHA256 != got.SHA256 {
		return nil, errs.New(errs.KindIntegrity, "trove digest mismatch (SHA-256)")
	}

	digestBytes := want.signableDigestBytes(t.DigestVersion)
	for _, sig := range t.Signatures {
		verr := ks.Verify(ctx, sig.KeyFingerprint, digestBytes, sig.SigData)
		if verr == nil {
			continue
		}
		var notFound *external.KeyNotFound
		if asKeyNotFound(verr, &notFound) {
			unknownKeys = append(unknownKeys, sig.KeyFingerprint)
			if strict {
				return unknownKeys, errs.Wrapf(errs.KindIntegrity, verr, "signature %s: key unknown", sig.KeyFingerprint)
			}
			continue
		}
		return unknownKeys, errs.Wrapf(errs.KindIntegrity, verr, "signature %s failed to verify", sig.KeyFingerprint)
	}
	return unknownKeys, nil
}

func asKeyNotFound(err error, target **external.KeyNotFound) bool {
	if kn, ok := err.(*external.KeyNotFound); ok {
		*target = kn
		return true
	}
	return false
}

// attachedDigest returns t.AttachedDigest when it is set (Sign sets it,
// and a caller may record one to check a later state against), and
// otherwise a freshly computed digest, in which case VerifyDigests'
// digest comparison is against itself. store.Store.GetTrove does not set
// AttachedDigest.
func (t *Trove) attachedDigest() Digest {
	if t.AttachedDigest != nil {
		return *t.AttachedDigest
	}
	return t.ComputeDigest()
}
