package trove

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/CourtJesterG/conary/internal/external"
)

// TestVerifyDigestsRejectedSignatureFails exercises VerifyDigests'
// signature-invalid path through a go.uber.org/mock-generated-style
// mock rather than the hand-written fakeKeyStore, so the failure is
// driven by an explicit expectation instead of a fake's internal state.
func TestVerifyDigestsRejectedSignatureFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	ks := external.NewMockKeyStore(ctrl)

	tr := newTestTrove(t)
	require.NoError(t, tr.Sign(context.Background(), fakeSigner{}, "ABCD"))

	ks.EXPECT().
		Verify(gomock.Any(), "ABCD", gomock.Any(), gomock.Any()).
		Return(errInvalidSignature)

	_, err := tr.VerifyDigests(context.Background(), ks, false)
	require.ErrorIs(t, err, errInvalidSignature)
}
