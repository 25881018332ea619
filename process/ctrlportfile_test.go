package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCtrlPortFileTCP(t *testing.T) {
	info, ok := parseCtrlPortFile([]byte("PORT=127.0.0.1:9051\n"))
	require.True(t, ok)
	assert.Equal(t, CtrlPortInfo{Network: "tcp", Address: "127.0.0.1:9051"}, info)
}

func TestParseCtrlPortFileUnix(t *testing.T) {
	info, ok := parseCtrlPortFile([]byte("UNIX_PORT=/tmp/tor/control.sock\n"))
	require.True(t, ok)
	assert.True(t, info.Unix)
	assert.Equal(t, "unix", info.Network)
	assert.Equal(t, "/tmp/tor/control.sock", info.Address)
}

func TestParseCtrlPortFilePrefersUnixWhenBothPresent(t *testing.T) {
	info, ok := parseCtrlPortFile([]byte("UNIX_PORT=/tmp/tor/control.sock\nPORT=127.0.0.1:9051\n"))
	require.True(t, ok)
	assert.True(t, info.Unix)
}

func TestParseCtrlPortFileNoRecognizedLine(t *testing.T) {
	_, ok := parseCtrlPortFile([]byte("garbage\n"))
	assert.False(t, ok)
}

func TestWaitCtrlPortFileSucceedsOnceFileAppears(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctrl.txt")

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = os.WriteFile(path, []byte("PORT=127.0.0.1:9051\n"), 0o600)
	}()

	info, err := waitCtrlPortFile(context.Background(), path, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9051", info.Address)
}

func TestWaitCtrlPortFileTimesOut(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "never.txt")

	_, err := waitCtrlPortFile(context.Background(), path, 60*time.Millisecond)
	require.Error(t, err)
	var se *StartError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ErrCtrlPortFileTimeout, se.Kind)
}

func TestWaitCookieFileSucceedsOnceFileAppears(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "control_auth_cookie")

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = os.WriteFile(path, []byte{0x01, 0x02, 0x03}, 0o600)
	}()

	data, err := waitCookieFile(context.Background(), path, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, data)
}
