package gateway

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// logRoot is the workspace-relative directory holding per-channel logs.
const logRoot = ".agent/message-gateway"

// LogRoot returns the absolute log directory for a workspace.
func LogRoot(workspace string) string {
	return filepath.Join(workspace, filepath.FromSlash(logRoot))
}

// sanitizeID maps a channel id to a safe path segment: anything outside
// [A-Za-z0-9._-] becomes "_", and an empty result becomes "unknown".
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

// channelLog is the single-writer sink for one plugin's output. Lines are
// timestamped and tagged with their stream before being appended.
type channelLog struct {
	mu     sync.Mutex
	file   *os.File
	closed bool
}

// openChannelLog creates <workspace>/.agent/message-gateway/<id>/<ts>.log
// and returns the sink plus the file path.
func openChannelLog(workspace, channelID string) (*channelLog, string, error) {
	dir := filepath.Join(workspace, filepath.FromSlash(logRoot), sanitizeID(channelID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("gateway: create log directory %s: %w", dir, err)
	}

	name := time.Now().UTC().Format("2006-01-02T15-04-05") + ".log"
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("gateway: open log file %s: %w", path, err)
	}
	return &channelLog{file: f}, path, nil
}

// writeLine appends one tagged line. Safe for concurrent use; writes after
// Close are dropped.
func (l *channelLog) writeLine(stream, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	fmt.Fprintf(l.file, "[%s] [%s] %s\n", time.Now().UTC().Format(time.RFC3339), stream, text)
}

// Close flushes and closes the underlying file. Idempotent.
func (l *channelLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	_ = l.file.Close()
}
