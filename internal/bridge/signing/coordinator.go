package signing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
)

// Store persists SigningSessions and the request-id anti-replay set.
// Persisting used request ids, rather than keeping them only in an
// in-memory set, ensures a coordinator restart can never let a
// previously-serviced request_id be replayed.
type Store interface {
	IsRequestUsed(ctx context.Context, requestID string) (bool, error)
	MarkRequestUsed(ctx context.Context, requestID string) error
	SaveSession(ctx context.Context, s *SigningSession) error
	LoadSession(ctx context.Context, requestID string) (*SigningSession, error)
}

// Coordinator tracks in-flight signing sessions and assembles a
// signature once enough shares are submitted.
type Coordinator struct {
	mu      sync.Mutex
	store   Store
	active  map[string]*SigningSession
	threshold int
}

// NewCoordinator constructs a Coordinator requiring `threshold` shares
// per session to complete.
func NewCoordinator(store Store, threshold int) *Coordinator {
	return &Coordinator{store: store, active: make(map[string]*SigningSession), threshold: threshold}
}

// RequestSigning opens a new session for requestID, rejecting a
// request_id that has already been serviced (replay protection,
// checked against the persistent Store so it survives restarts).
func (c *Coordinator) RequestSigning(ctx context.Context, requestID string, txData []byte) (*SigningSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	used, err := c.store.IsRequestUsed(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("check request replay: %w", err)
	}
	if used {
		return nil, apperr.Conflict("signing request %s already used", requestID)
	}
	if _, exists := c.active[requestID]; exists {
		return nil, apperr.Conflict("signing request %s already active", requestID)
	}

	session := &SigningSession{
		RequestID: requestID,
		TxDataHash: hashTxData(txData),
		Threshold:  c.threshold,
		Shares:     make(map[int]Share),
		Status:     SessionPending,
		CreatedAt:  time.Now().UTC(),
	}

	if err := c.store.MarkRequestUsed(ctx, requestID); err != nil {
		return nil, fmt.Errorf("mark request used: %w", err)
	}
	if err := c.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save signing session: %w", err)
	}

	c.active[requestID] = session
	return cloneSession(session), nil
}

// SubmitShare adds a signer's partial signature to a session, combining
// the shares into a final signature once the threshold is reached.
func (c *Coordinator) SubmitShare(ctx context.Context, requestID string, share Share) (*SigningSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.active[requestID]
	if !ok {
		return nil, apperr.NotFound("signing session %s not found", requestID)
	}
	if session.Status != SessionPending {
		return nil, apperr.Conflict("signing session %s is not pending (status=%s)", requestID, session.Status)
	}
	if _, dup := session.Shares[share.SignerID]; dup {
		return nil, apperr.Conflict("signer %d already submitted a share for %s", share.SignerID, requestID)
	}

	share.SubmittedAt = time.Now().UTC()
	session.Shares[share.SignerID] = share

	if len(session.Shares) >= session.Threshold {
		session.Signature = combineShares(session.TxDataHash, session.Shares)
		session.Status = SessionComplete
		session.CompletedAt = time.Now().UTC()
	}

	if err := c.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save signing session: %w", err)
	}
	return cloneSession(session), nil
}

// FailSession marks a session as failed (e.g. on signer timeout).
func (c *Coordinator) FailSession(ctx context.Context, requestID, reason string) (*SigningSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.active[requestID]
	if !ok {
		return nil, apperr.NotFound("signing session %s not found", requestID)
	}
	session.Status = SessionFailed
	session.Error = reason
	session.CompletedAt = time.Now().UTC()

	if err := c.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save signing session: %w", err)
	}
	return cloneSession(session), nil
}

// FailStaleSessions fails every active Pending session whose CreatedAt is
// older than olderThan, returning the request ids it failed. It is meant
// to be called on a timer by a driver enforcing the signing session
// timeout: a signer that goes dark or stalls must not leave a session
// Pending forever.
func (c *Coordinator) FailStaleSessions(ctx context.Context, olderThan time.Duration) ([]string, error) {
	c.mu.Lock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var stale []*SigningSession
	for _, session := range c.active {
		if session.Status == SessionPending && session.CreatedAt.Before(cutoff) {
			stale = append(stale, session)
		}
	}
	c.mu.Unlock()

	failed := make([]string, 0, len(stale))
	for _, session := range stale {
		if _, err := c.FailSession(ctx, session.RequestID, "signing session timed out waiting for shares"); err != nil {
			return failed, fmt.Errorf("fail stale session %s: %w", session.RequestID, err)
		}
		failed = append(failed, session.RequestID)
	}
	return failed, nil
}

// GetSession returns a session by request id, checking the in-memory
// active set before falling back to the durable store.
func (c *Coordinator) GetSession(ctx context.Context, requestID string) (*SigningSession, error) {
	c.mu.Lock()
	if session, ok := c.active[requestID]; ok {
		c.mu.Unlock()
		return cloneSession(session), nil
	}
	c.mu.Unlock()

	session, err := c.store.LoadSession(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.NotFound("signing session %s not found", requestID)
	}
	return session, nil
}

// combineShares assembles the final signature from submitted shares.
// This is a placeholder digest standing in for a real FROST signature
// aggregation: shares are sorted by signer id, concatenated behind a
// domain separator, and hashed.
func combineShares(txDataHash string, shares map[int]Share) string {
	ids := make([]int, 0, len(shares))
	for id := range shares {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var sb strings.Builder
	sb.WriteString("FROST-SIG:")
	sb.WriteString(txDataHash)
	sb.WriteString(":")
	for _, id := range ids {
		sb.WriteString(shares[id].PartialSig)
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func cloneSession(s *SigningSession) *SigningSession {
	cp := *s
	cp.Shares = make(map[int]Share, len(s.Shares))
	for k, v := range s.Shares {
		cp.Shares[k] = v
	}
	return &cp
}
