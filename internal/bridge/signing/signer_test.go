package signing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/signing"
)

func TestSigner_SignProducesDeterministicPartial(t *testing.T) {
	packages, err := signing.GenerateShares(2, 3)
	require.NoError(t, err)

	signer := signing.NewSigner(packages[0])
	share1, err := signer.Sign([]byte("tx-data-1"))
	require.NoError(t, err)
	assert.Equal(t, packages[0].SignerID, share1.SignerID)
	assert.NotEmpty(t, share1.PartialSig)
}

func TestSigner_RejectsReplayOfSameTxData(t *testing.T) {
	packages, err := signing.GenerateShares(2, 3)
	require.NoError(t, err)

	signer := signing.NewSigner(packages[0])
	_, err = signer.Sign([]byte("tx-data-1"))
	require.NoError(t, err)

	_, err = signer.Sign([]byte("tx-data-1"))
	assert.Error(t, err)
}

func TestSigner_AllowsDistinctTxData(t *testing.T) {
	packages, err := signing.GenerateShares(2, 3)
	require.NoError(t, err)

	signer := signing.NewSigner(packages[0])
	_, err = signer.Sign([]byte("tx-data-1"))
	require.NoError(t, err)
	_, err = signer.Sign([]byte("tx-data-2"))
	assert.NoError(t, err)
}
