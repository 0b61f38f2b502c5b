package signing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/signing"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/signing/memory"
)

func TestCoordinator_CompletesAtThreshold(t *testing.T) {
	ctx := context.Background()
	packages, err := signing.GenerateShares(2, 3)
	require.NoError(t, err)
	signers := make([]*signing.Signer, len(packages))
	for i, pkg := range packages {
		signers[i] = signing.NewSigner(pkg)
	}

	coord := signing.NewCoordinator(memory.New(), 2)
	txData := []byte("withdrawal-tx-bytes")
	session, err := coord.RequestSigning(ctx, "req-1", txData)
	require.NoError(t, err)
	assert.Equal(t, signing.SessionPending, session.Status)

	share0, err := signers[0].Sign(txData)
	require.NoError(t, err)
	session, err = coord.SubmitShare(ctx, "req-1", share0)
	require.NoError(t, err)
	assert.Equal(t, signing.SessionPending, session.Status)

	share1, err := signers[1].Sign(txData)
	require.NoError(t, err)
	session, err = coord.SubmitShare(ctx, "req-1", share1)
	require.NoError(t, err)
	assert.Equal(t, signing.SessionComplete, session.Status)
	assert.NotEmpty(t, session.Signature)
}

func TestCoordinator_RejectsReplayedRequestID(t *testing.T) {
	ctx := context.Background()
	coord := signing.NewCoordinator(memory.New(), 2)
	_, err := coord.RequestSigning(ctx, "req-dup", []byte("tx"))
	require.NoError(t, err)

	_, err = coord.RequestSigning(ctx, "req-dup", []byte("tx"))
	assert.Error(t, err)
}

func TestCoordinator_RejectsDuplicateShareFromSameSigner(t *testing.T) {
	ctx := context.Background()
	packages, err := signing.GenerateShares(2, 3)
	require.NoError(t, err)
	signer := signing.NewSigner(packages[0])

	coord := signing.NewCoordinator(memory.New(), 2)
	txData := []byte("tx-bytes")
	_, err = coord.RequestSigning(ctx, "req-2", txData)
	require.NoError(t, err)

	share, err := signer.Sign(txData)
	require.NoError(t, err)
	_, err = coord.SubmitShare(ctx, "req-2", share)
	require.NoError(t, err)

	_, err = coord.SubmitShare(ctx, "req-2", share)
	assert.Error(t, err)
}

func TestCoordinator_FailSession(t *testing.T) {
	ctx := context.Background()
	coord := signing.NewCoordinator(memory.New(), 2)
	_, err := coord.RequestSigning(ctx, "req-3", []byte("tx"))
	require.NoError(t, err)

	session, err := coord.FailSession(ctx, "req-3", "signer timeout")
	require.NoError(t, err)
	assert.Equal(t, signing.SessionFailed, session.Status)
	assert.Equal(t, "signer timeout", session.Error)
}

func TestCoordinator_FailStaleSessions_FailsOldPendingOnly(t *testing.T) {
	ctx := context.Background()
	coord := signing.NewCoordinator(memory.New(), 2)
	_, err := coord.RequestSigning(ctx, "req-stale", []byte("tx"))
	require.NoError(t, err)
	_, err = coord.RequestSigning(ctx, "req-fresh", []byte("tx"))
	require.NoError(t, err)

	// olderThan=0 treats every session already created as stale; a
	// large olderThan treats nothing as stale yet.
	failed, err := coord.FailStaleSessions(ctx, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"req-stale", "req-fresh"}, failed)

	staleSession, err := coord.GetSession(ctx, "req-stale")
	require.NoError(t, err)
	assert.Equal(t, signing.SessionFailed, staleSession.Status)
}

func TestCoordinator_FailStaleSessions_IgnoresFreshSessions(t *testing.T) {
	ctx := context.Background()
	coord := signing.NewCoordinator(memory.New(), 2)
	_, err := coord.RequestSigning(ctx, "req-fresh-2", []byte("tx"))
	require.NoError(t, err)

	failed, err := coord.FailStaleSessions(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, failed)

	session, err := coord.GetSession(ctx, "req-fresh-2")
	require.NoError(t, err)
	assert.Equal(t, signing.SessionPending, session.Status)
}

func TestCoordinator_FailStaleSessions_IgnoresCompletedSessions(t *testing.T) {
	ctx := context.Background()
	packages, err := signing.GenerateShares(1, 1)
	require.NoError(t, err)
	signer := signing.NewSigner(packages[0])

	coord := signing.NewCoordinator(memory.New(), 1)
	txData := []byte("tx-bytes")
	_, err = coord.RequestSigning(ctx, "req-complete", txData)
	require.NoError(t, err)
	share, err := signer.Sign(txData)
	require.NoError(t, err)
	_, err = coord.SubmitShare(ctx, "req-complete", share)
	require.NoError(t, err)

	failed, err := coord.FailStaleSessions(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, failed)

	session, err := coord.GetSession(ctx, "req-complete")
	require.NoError(t, err)
	assert.Equal(t, signing.SessionComplete, session.Status)
}
