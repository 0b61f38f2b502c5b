package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFloatAndFloat(t *testing.T) {
	a := FromFloat(1.23456789)
	assert.InDelta(t, 1.23456789, a.Float(), 1e-8)
}

func TestAddSub(t *testing.T) {
	a := FromFloat(1.5)
	b := FromFloat(0.25)
	assert.InDelta(t, 1.75, a.Add(b).Float(), 1e-8)
	assert.InDelta(t, 1.25, a.Sub(b).Float(), 1e-8)
}

func TestMulPercent(t *testing.T) {
	a := FromFloat(1000)
	fee := a.MulPercent(0.3)
	assert.InDelta(t, 3.0, fee.Float(), 1e-6)
}

func TestMulRate(t *testing.T) {
	a := FromFloat(2)
	converted := a.MulRate(150.5)
	assert.InDelta(t, 301.0, converted.Float(), 1e-6)
}

func TestValidate(t *testing.T) {
	require.NoError(t, FromFloat(1).Validate())
	require.Error(t, FromFloat(0).Validate())
	require.Error(t, FromFloat(-1).Validate())
}

func TestString(t *testing.T) {
	a := FromFloat(1.5)
	assert.Contains(t, a.String(), "1.5")
}
