package signing

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
)

// Signer holds one signing participant's key share and produces partial
// signatures, with an in-process replay guard on tx_data_hash.
//
// Unlike the Coordinator's used_request_ids (which the Store persists
// across process restarts), a signer's own replay set lives only in
// memory: NewSigner starts it empty, and it is neither persisted nor
// restored after a restart.
type Signer struct {
	mu           sync.Mutex
	id           int
	keyShareHex  string
	signedHashes map[string]bool
}

// NewSigner constructs a Signer bound to a key share from the ceremony.
func NewSigner(pkg KeyPackage) *Signer {
	return &Signer{
		id:           pkg.SignerID,
		keyShareHex:  pkg.ShareHex,
		signedHashes: make(map[string]bool),
	}
}

// ID returns the signer's participant index.
func (s *Signer) ID() int { return s.id }

// hashTxData returns SHA-256(tx_data) hex, the replay key.
func hashTxData(txData []byte) string {
	sum := sha256.Sum256(txData)
	return hex.EncodeToString(sum[:])
}

// Sign produces a deterministic partial signature over txData, rejecting
// a repeat of a tx_data hash already signed by this signer.
func (s *Signer) Sign(txData []byte) (Share, error) {
	if s.keyShareHex == "" {
		return Share{}, apperr.Internal("signer %d has no key share", s.id)
	}

	txHash := hashTxData(txData)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signedHashes[txHash] {
		return Share{}, apperr.Conflict("signer %d already signed tx_data %s", s.id, txHash)
	}

	h := sha256.New()
	h.Write([]byte(s.keyShareHex))
	h.Write([]byte{byte(s.id)})
	h.Write(txData)
	partial := hex.EncodeToString(h.Sum(nil))

	s.signedHashes[txHash] = true
	return Share{SignerID: s.id, PartialSig: partial}, nil
}
