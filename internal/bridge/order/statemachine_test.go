package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_LegalPaths(t *testing.T) {
	cases := []struct {
		from, to Status
	}{
		{StatusCreated, StatusAwaitingDeposit},
		{StatusAwaitingDeposit, StatusDepositDetected},
		{StatusDepositDetected, StatusConfirming},
		{StatusConfirming, StatusBridging},
		{StatusBridging, StatusSigning},
		{StatusSigning, StatusSending},
		{StatusSending, StatusCompleted},
		{StatusFailed, StatusRefunding},
		{StatusRefunding, StatusRefunded},
	}
	for _, c := range cases {
		assert.Truef(t, CanTransition(c.from, c.to), "%s -> %s should be legal", c.from, c.to)
	}
}

func TestCanTransition_DepositDetectedCannotSkipConfirming(t *testing.T) {
	assert.False(t, CanTransition(StatusDepositDetected, StatusBridging))
}

func TestCanTransition_TerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	for _, terminal := range []Status{StatusCompleted, StatusRefunded, StatusExpired} {
		allowed := ValidTransitions[terminal]
		assert.Empty(t, allowed, "%s should be terminal", terminal)
		assert.False(t, CanTransition(terminal, StatusCreated))
	}
}

func TestCanTransition_UnknownStatusRejected(t *testing.T) {
	assert.False(t, CanTransition(Status("bogus"), StatusCreated))
}

func TestTransitionError(t *testing.T) {
	err := NewTransitionError(StatusCompleted, StatusCreated)
	assert.Equal(t, "illegal order transition: completed -> created", err.Error())
}
