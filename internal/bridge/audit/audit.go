// Package audit implements a hash-chained, append-only audit log: each
// record's content hash folds in the previous record's hash, so any
// retroactive edit breaks the chain from that point forward.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// genesisHash is the sentinel previous-hash for the first record in the
// chain: 64 ASCII '0' characters.
var genesisHash = strings.Repeat("0", 64)

// Record is one append-only audit entry.
type Record struct {
	ID         int64
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]interface{}
	Actor      string
	IPAddress  string
	ContentHash string
	PrevHash    string
	CreatedAt   time.Time
}

// Store persists the append-only chain. Implementations must guarantee
// that LatestHash and Append together behave atomically under the
// single-writer discipline Chain enforces above them.
type Store interface {
	LatestHash(ctx context.Context) (string, error)
	Append(ctx context.Context, r *Record) error
	List(ctx context.Context, entityType, entityID string, limit int) ([]Record, error)
	// ListSince returns up to limit records with id > afterID, oldest
	// first, for incremental chain-integrity verification.
	ListSince(ctx context.Context, afterID int64, limit int) ([]Record, error)
}

// Chain appends hash-linked Records. All writers must go through a
// single Chain instance: the internal mutex is what makes the
// content-hash chain well-formed, since prev_hash must reflect the
// truly most recent write.
type Chain struct {
	mu    sync.Mutex
	store Store
}

// New constructs a Chain over the given Store.
func New(store Store) *Chain {
	return &Chain{store: store}
}

// contentHash computes SHA-256(action || entity_type || entity_id ||
// details_json || actor || prev_hash), lowercase hex.
func contentHash(action, entityType, entityID, detailsJSON, actor, prevHash string) string {
	h := sha256.New()
	h.Write([]byte(action))
	h.Write([]byte(entityType))
	h.Write([]byte(entityID))
	h.Write([]byte(detailsJSON))
	h.Write([]byte(actor))
	h.Write([]byte(prevHash))
	return hex.EncodeToString(h.Sum(nil))
}

// Append appends a new record to the chain, computing its content hash
// from the current chain tip.
func (c *Chain) Append(ctx context.Context, action, entityType, entityID string, details map[string]interface{}, actor, ipAddress string) (*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prevHash, err := c.store.LatestHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("read audit chain tip: %w", err)
	}
	if prevHash == "" {
		prevHash = genesisHash
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal audit details: %w", err)
	}

	record := &Record{
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Details:     details,
		Actor:       actor,
		IPAddress:   ipAddress,
		ContentHash: contentHash(action, entityType, entityID, string(detailsJSON), actor, prevHash),
		PrevHash:    prevHash,
		CreatedAt:   time.Now().UTC(),
	}

	if err := c.store.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("append audit record: %w", err)
	}
	return record, nil
}

// List returns recent records for an entity, most-recent-first from the
// store's ordering.
func (c *Chain) List(ctx context.Context, entityType, entityID string, limit int) ([]Record, error) {
	return c.store.List(ctx, entityType, entityID, limit)
}

// VerifySegment fetches up to limit records after afterID, oldest
// first, verifies their hash chain, and returns the highest id seen
// (0 if none). Callers use the returned id as the next call's afterID
// to verify the chain incrementally without re-walking it from genesis
// every time.
func (c *Chain) VerifySegment(ctx context.Context, afterID int64, limit int) (int64, error) {
	records, err := c.store.ListSince(ctx, afterID, limit)
	if err != nil {
		return afterID, fmt.Errorf("list audit records since %d: %w", afterID, err)
	}
	if len(records) == 0 {
		return afterID, nil
	}
	if afterID == 0 {
		if err := Verify(records); err != nil {
			return afterID, err
		}
	} else {
		// A segment starting mid-chain has no genesis record to anchor
		// prev_hash against; Verify only checks internal consistency of
		// the segment itself, which still catches any tampering within
		// the window.
		if err := verifySegmentInternal(records); err != nil {
			return afterID, err
		}
	}
	return records[len(records)-1].ID, nil
}

// verifySegmentInternal checks content_hash correctness and prev_hash
// continuity across records, without requiring the segment to start at
// genesis.
func verifySegmentInternal(records []Record) error {
	for i, r := range records {
		detailsJSON, err := json.Marshal(r.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details for record %d: %w", i, err)
		}
		want := contentHash(r.Action, r.EntityType, r.EntityID, string(detailsJSON), r.Actor, r.PrevHash)
		if want != r.ContentHash {
			return fmt.Errorf("audit chain broken at record %d (id=%d): content_hash mismatch", i, r.ID)
		}
		if i > 0 && r.PrevHash != records[i-1].ContentHash {
			return fmt.Errorf("audit chain broken at record %d (id=%d): prev_hash discontinuity", i, r.ID)
		}
	}
	return nil
}

// Verify walks a chain segment and confirms each record's content_hash
// recomputes correctly and that prev_hash links are unbroken. Records
// must be supplied oldest-first.
func Verify(records []Record) error {
	prev := genesisHash
	for i, r := range records {
		if r.PrevHash != prev {
			return fmt.Errorf("audit chain broken at record %d (id=%d): prev_hash mismatch", i, r.ID)
		}
		detailsJSON, err := json.Marshal(r.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details for record %d: %w", i, err)
		}
		want := contentHash(r.Action, r.EntityType, r.EntityID, string(detailsJSON), r.Actor, r.PrevHash)
		if want != r.ContentHash {
			return fmt.Errorf("audit chain broken at record %d (id=%d): content_hash mismatch", i, r.ID)
		}
		prev = r.ContentHash
	}
	return nil
}
