package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetOrCreateReturnsSameInstanceForSameEnv(t *testing.T) {
	reg := NewRegistry()
	env := Environment{WorkDir: t.TempDir()}

	calls := 0
	factory := func() (*Runtime, error) {
		calls++
		return newTestRuntime(t), nil
	}

	rt1, err := reg.GetOrCreate(env, factory)
	require.NoError(t, err)
	rt2, err := reg.GetOrCreate(env, factory)
	require.NoError(t, err)

	assert.Same(t, rt1, rt2)
	assert.Equal(t, 1, calls, "factory runs at most once per fid")
}

func TestRegistryGetOrCreatePropagatesFactoryError(t *testing.T) {
	reg := NewRegistry()
	env := Environment{WorkDir: t.TempDir()}
	boom := errors.New("boom")

	_, err := reg.GetOrCreate(env, func() (*Runtime, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, ok := reg.Get(env)
	assert.False(t, ok, "a failed factory call must not register a Runtime")
}

func TestRegistryDropRemovesEntry(t *testing.T) {
	reg := NewRegistry()
	env := Environment{WorkDir: t.TempDir()}

	_, err := reg.GetOrCreate(env, func() (*Runtime, error) { return newTestRuntime(t), nil })
	require.NoError(t, err)

	reg.Drop(env)
	_, ok := reg.Get(env)
	assert.False(t, ok)
}

func TestRegistryGetMissingIsFalse(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Get(Environment{WorkDir: "/nowhere"})
	assert.False(t, ok)
}
