package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".pipeline.lock")
	l := New(path)

	require.NoError(t, l.Acquire())

	// Lock file records the holder's PID
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	require.NoError(t, l.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSecondAcquireFailsBusy(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".pipeline.lock")
	first := New(path)
	require.NoError(t, first.Acquire())
	defer first.Release()

	second := New(path)
	err := second.Acquire()
	require.ErrorIs(t, err, ErrBusy)

	// The losing lock must not remove the winner's file on release
	require.NoError(t, second.Release())
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestReleaseWithoutAcquire(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), ".pipeline.lock"))
	assert.NoError(t, l.Release())
}

func TestReacquireAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".pipeline.lock")
	l := New(path)
	require.NoError(t, l.Acquire())
	require.NoError(t, l.Release())
	require.NoError(t, l.Acquire())
	require.NoError(t, l.Release())
}
