package process

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"
)

// CtrlPortInfo is the parsed contents of tor's ControlPortWriteToFile
// output: either "PORT=ip:port" or "UNIX_PORT=/path".
type CtrlPortInfo struct {
	Unix    bool
	Network string // "tcp" or "unix", ready for net.Dial
	Address string // "ip:port" or a filesystem path
}

// parseCtrlPortFile parses the control port file tor writes: the first
// "UNIX_PORT=" line is preferred wherever it appears; otherwise the first
// "PORT=" line is used.
func parseCtrlPortFile(data []byte) (CtrlPortInfo, bool) {
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	var tcp CtrlPortInfo
	haveTCP := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "PORT="):
			if !haveTCP {
				tcp = CtrlPortInfo{Network: "tcp", Address: strings.TrimPrefix(line, "PORT=")}
				haveTCP = true
			}
		case strings.HasPrefix(line, "UNIX_PORT="):
			return CtrlPortInfo{Unix: true, Network: "unix", Address: strings.TrimPrefix(line, "UNIX_PORT=")}, true
		}
	}
	return tcp, haveTCP
}

// pollFile polls path every interval until it exists and is non-empty, or
// ctx is done. It returns the file's contents.
func pollFile(ctx context.Context, path string, interval time.Duration) ([]byte, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
			return data, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitCtrlPortFile polls path (tor's ControlPortWriteToFile target) until a
// PORT=/UNIX_PORT= line appears or timeout elapses, per spec §4.8 (10s
// default timeout).
func waitCtrlPortFile(ctx context.Context, path string, timeout time.Duration) (CtrlPortInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		data, err := pollFile(ctx, path, 100*time.Millisecond)
		if err != nil {
			return CtrlPortInfo{}, newError(ErrCtrlPortFileTimeout, "waitCtrlPortFile", "timed out waiting for "+path, err)
		}
		if info, ok := parseCtrlPortFile(data); ok {
			return info, nil
		}
		select {
		case <-ctx.Done():
			return CtrlPortInfo{}, newError(ErrCtrlPortFileTimeout, "waitCtrlPortFile", "timed out waiting for "+path, ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// waitCookieFile polls path (tor's CookieAuthFile target) until it is
// non-empty or timeout elapses (1s default, shorter than the control port
// file's because tor writes the cookie before opening the listener).
func waitCookieFile(ctx context.Context, path string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	data, err := pollFile(ctx, path, 50*time.Millisecond)
	if err != nil {
		return nil, newError(ErrCookieFileTimeout, "waitCookieFile", "timed out waiting for "+path, err)
	}
	return data, nil
}
