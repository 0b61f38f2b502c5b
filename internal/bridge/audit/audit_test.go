package audit_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/audit"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/audit/memory"
)

func TestAppend_ChainsHashes(t *testing.T) {
	store := memory.New()
	chain := audit.New(store)
	ctx := context.Background()

	r1, err := chain.Append(ctx, "order_created", "order", "br_abc", map[string]interface{}{"x": 1}, "", "")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("0", 64), r1.PrevHash)

	r2, err := chain.Append(ctx, "order_status_changed", "order", "br_abc", map[string]interface{}{"to": "awaiting_deposit"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, r1.ContentHash, r2.PrevHash)
	assert.NotEqual(t, r1.ContentHash, r2.ContentHash)
}

func TestVerify_DetectsTamper(t *testing.T) {
	store := memory.New()
	chain := audit.New(store)
	ctx := context.Background()

	_, err := chain.Append(ctx, "order_created", "order", "br_abc", map[string]interface{}{"x": 1}, "", "")
	require.NoError(t, err)
	_, err = chain.Append(ctx, "order_status_changed", "order", "br_abc", map[string]interface{}{"to": "confirming"}, "", "")
	require.NoError(t, err)

	records, err := chain.List(ctx, "", "", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	oldestFirst := []audit.Record{records[1], records[0]}
	require.NoError(t, audit.Verify(oldestFirst))

	oldestFirst[1].Action = "tampered"
	assert.Error(t, audit.Verify(oldestFirst))
}

func TestVerifySegment_IncrementalByID(t *testing.T) {
	store := memory.New()
	chain := audit.New(store)
	ctx := context.Background()

	_, err := chain.Append(ctx, "order_created", "order", "br_1", nil, "", "")
	require.NoError(t, err)
	_, err = chain.Append(ctx, "order_created", "order", "br_2", nil, "", "")
	require.NoError(t, err)

	lastID, err := chain.VerifySegment(ctx, 0, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 2, lastID)

	_, err = chain.Append(ctx, "order_created", "order", "br_3", nil, "", "")
	require.NoError(t, err)

	lastID, err = chain.VerifySegment(ctx, lastID, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 3, lastID)
}
