package trove

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CourtJesterG/conary/internal/external"
	"github.com/CourtJesterG/conary/internal/version"
)

var errInvalidSignature = errors.New("invalid signature")

// fakeKeyStore is a hand-written fake implementing external.KeyStore,
// good enough to exercise the digest/signature verification paths
// without a real OpenPGP implementation.
type fakeKeyStore struct {
	knownFingerprints map[string]bool
	rejectAll         bool
}

func (f *fakeKeyStore) GetPublicKey(ctx context.Context, fp string) (external.PublicKey, error) {
	if !f.knownFingerprints[fp] {
		return external.PublicKey{}, &external.KeyNotFound{Fingerprint: fp}
	}
	return external.PublicKey{Fingerprint: fp}, nil
}

func (f *fakeKeyStore) AddAsciiKey(ctx context.Context, owner, ascii string) error { return nil }

func (f *fakeKeyStore) Verify(ctx context.Context, fp string, digest, sig []byte) error {
	if !f.knownFingerprints[fp] {
		return &external.KeyNotFound{Fingerprint: fp}
	}
	if f.rejectAll {
		return errInvalidSignature
	}
	return nil
}

type fakeSigner struct{}

func (fakeSigner) Sign(ctx context.Context, fp string, digest []byte) ([]byte, error) {
	return append([]byte("sig-for-"), digest...), nil
}

func newTestTrove(t *testing.T) *Trove {
	t.Helper()
	v, err := version.Parse("/example.com@ns:1/1.0-1-1")
	require.NoError(t, err)
	tr := New("foo:runtime", v, version.Flavor{})
	require.NoError(t, tr.AddFile(ManifestEntry{PathID: PathID{1}, Path: "/bin/foo", FileID: FileID{1}, Version: v}))
	return tr
}

func TestVerifyDigestsCleanTrove(t *testing.T) {
	tr := newTestTrove(t)
	ks := &fakeKeyStore{knownFingerprints: map[string]bool{"ABCD": true}}
	unknown, err := tr.VerifyDigests(context.Background(), ks, false)
	require.NoError(t, err)
	require.Empty(t, unknown)
}

func TestSignThenVerify(t *testing.T) {
	tr := newTestTrove(t)
	ks := &fakeKeyStore{knownFingerprints: map[string]bool{"ABCD": true}}
	require.NoError(t, tr.Sign(context.Background(), fakeSigner{}, "ABCD"))
	unknown, err := tr.VerifyDigests(context.Background(), ks, false)
	require.NoError(t, err)
	require.Empty(t, unknown)
}

func TestVerifyDigestsUnknownKeyLenientByDefault(t *testing.T) {
	tr := newTestTrove(t)
	require.NoError(t, tr.Sign(context.Background(), fakeSigner{}, "UNKNOWN"))
	ks := &fakeKeyStore{knownFingerprints: map[string]bool{}}

	unknown, err := tr.VerifyDigests(context.Background(), ks, false)
	require.NoError(t, err, "unknown-key signatures are not fatal unless strict")
	require.Equal(t, []string{"UNKNOWN"}, unknown)

	_, err = tr.VerifyDigests(context.Background(), ks, true)
	require.Error(t, err, "strict mode makes unknown-key signatures fatal")
}

func TestVerifyDigestsTamperedManifestFails(t *testing.T) {
	tr := newTestTrove(t)
	d := tr.ComputeDigest()
	tr.AttachedDigest = &d

	// Tamper after the digest was "attached" (as if loaded then mutated).
	require.NoError(t, tr.AddFile(ManifestEntry{PathID: PathID{2}, Path: "/bin/bar", FileID: FileID{2}, Version: tr.Version}))

	ks := &fakeKeyStore{knownFingerprints: map[string]bool{}}
	_, err := tr.VerifyDigests(context.Background(), ks, false)
	require.Error(t, err)
}

func TestComponentNameClassification(t *testing.T) {
	require.False(t, IsComponent("foo"))
	require.True(t, IsComponent("foo:runtime"))
	require.True(t, IsSourceComponent("foo:source"))
	require.False(t, IsSourceComponent("foo:runtime"))
}
