package signing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
)

// GenerateShares runs a trusted-dealer t-of-n key ceremony, producing one
// KeyPackage per signer plus a shared group public key.
//
// The dealer generates total independent random seeds and derives the
// group public key by hashing them together. This is a placeholder DKG
// simulation, not a full Shamir secret-sharing scheme, since no
// FROST/secp256k1 library is part of the dependency surface this module
// draws from.
func GenerateShares(threshold, total int) ([]KeyPackage, error) {
	if threshold < 1 || total < 1 || threshold > total {
		return nil, apperr.BadRequest("invalid threshold/total: %d-of-%d", threshold, total)
	}

	seeds := make([][]byte, total)
	groupHasher := sha256.New()
	for i := 0; i < total; i++ {
		seed := make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("generate signer seed: %w", err)
		}
		seeds[i] = seed
		groupHasher.Write(seed)
	}
	groupPubKey := hex.EncodeToString(groupHasher.Sum(nil))

	packages := make([]KeyPackage, total)
	for i := 0; i < total; i++ {
		packages[i] = KeyPackage{
			SignerID:     i + 1,
			ShareHex:     hex.EncodeToString(seeds[i]),
			GroupPubKey:  groupPubKey,
			Threshold:    threshold,
			TotalSigners: total,
		}
	}
	return packages, nil
}
