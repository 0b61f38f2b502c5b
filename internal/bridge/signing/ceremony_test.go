package signing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/signing"
)

func TestGenerateShares_ProducesOnePackagePerSigner(t *testing.T) {
	packages, err := signing.GenerateShares(2, 3)
	require.NoError(t, err)
	require.Len(t, packages, 3)

	for i, pkg := range packages {
		assert.Equal(t, i+1, pkg.SignerID)
		assert.Equal(t, 2, pkg.Threshold)
		assert.Equal(t, 3, pkg.TotalSigners)
		assert.NotEmpty(t, pkg.ShareHex)
		assert.Equal(t, packages[0].GroupPubKey, pkg.GroupPubKey)
	}
}

func TestGenerateShares_RejectsInvalidThreshold(t *testing.T) {
	_, err := signing.GenerateShares(0, 3)
	assert.Error(t, err)

	_, err = signing.GenerateShares(4, 3)
	assert.Error(t, err)
}

func TestGenerateShares_SharesAreDistinct(t *testing.T) {
	packages, err := signing.GenerateShares(2, 3)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, pkg := range packages {
		assert.False(t, seen[pkg.ShareHex], "duplicate share generated")
		seen[pkg.ShareHex] = true
	}
}
