package system_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-bridge/bridge-engine/internal/system"
	"github.com/r3e-bridge/bridge-engine/pkg/logger"
)

type fakeService struct {
	name        string
	startErr    error
	startCalled bool
	stopCalled  bool
	order       *[]string
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Start(_ context.Context) error {
	f.startCalled = true
	if f.startErr != nil {
		return f.startErr
	}
	*f.order = append(*f.order, "start:"+f.name)
	return nil
}

func (f *fakeService) Stop(_ context.Context) error {
	f.stopCalled = true
	*f.order = append(*f.order, "stop:"+f.name)
	return nil
}

func TestManager_StartsInOrderStopsInReverse(t *testing.T) {
	var order []string
	a := &fakeService{name: "a", order: &order}
	b := &fakeService{name: "b", order: &order}

	m := system.NewManager(logger.NewNop())
	m.Register(a)
	m.Register(b)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))

	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, order)
}

func TestManager_RollsBackOnStartFailure(t *testing.T) {
	var order []string
	a := &fakeService{name: "a", order: &order}
	b := &fakeService{name: "b", order: &order, startErr: errors.New("boom")}
	c := &fakeService{name: "c", order: &order}

	m := system.NewManager(logger.NewNop())
	m.Register(a)
	m.Register(b)
	m.Register(c)

	err := m.Start(context.Background())
	require.Error(t, err)

	assert.False(t, c.startCalled, "c should never start once b fails")
	assert.Equal(t, []string{"start:a", "stop:a"}, order)
}
