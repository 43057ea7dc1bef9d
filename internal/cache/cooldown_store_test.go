package cache

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryOnlySaveLoadRoundTrip(t *testing.T) {
	s := NewCooldownStore(nil, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []byte(`{"RELIANCE":{"count":2}}`)))

	data, err := s.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"RELIANCE":{"count":2}}`, string(data))
}

func TestLoadWithoutStateReturnsNil(t *testing.T) {
	s := NewCooldownStore(nil, zerolog.Nop())

	data, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestClearDropsState(t *testing.T) {
	s := NewCooldownStore(nil, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []byte(`{}`)))
	s.Clear(ctx)

	data, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSaveCopiesCallerBuffer(t *testing.T) {
	s := NewCooldownStore(nil, zerolog.Nop())
	ctx := context.Background()

	buf := []byte(`{"a":1}`)
	require.NoError(t, s.Save(ctx, buf))
	buf[2] = 'x'

	data, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}

func TestMemoryOnlyModeReportsUnavailable(t *testing.T) {
	s := NewCooldownStore(nil, zerolog.Nop())
	assert.False(t, s.Available())
}
