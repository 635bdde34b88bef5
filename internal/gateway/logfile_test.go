package gateway

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestSanitizeID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"tg-main", "tg-main"},
		{"tg.main_01", "tg.main_01"},
		{"a/b\\c", "a_b_c"},
		{"../escape", ".._escape"},
		{"спутник", "_______"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		if got := sanitizeID(tt.in); got != tt.want {
			t.Errorf("sanitizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChannelLog(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	sink, path, err := openChannelLog(workspace, "tg/main")
	if err != nil {
		t.Fatalf("openChannelLog: %v", err)
	}

	wantDir := filepath.Join(workspace, ".agent", "message-gateway", "tg_main")
	if filepath.Dir(path) != wantDir {
		t.Errorf("log path = %q, want directory %q", path, wantDir)
	}
	if !strings.HasSuffix(path, ".log") {
		t.Errorf("log path = %q, want .log suffix", path)
	}

	sink.writeLine("system", "spawned pid 123")
	sink.writeLine("stdout", "hello")
	sink.Close()
	sink.writeLine("stderr", "dropped after close")
	sink.Close() // idempotent

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q, want 2", lines)
	}

	linePattern := regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2}T[0-9:.]+Z\] \[(system|stdout|stderr)\] .+$`)
	for i, line := range lines {
		if !linePattern.MatchString(line) {
			t.Errorf("line[%d] = %q does not match the log format", i, line)
		}
	}
	if !strings.HasSuffix(lines[0], "[system] spawned pid 123") {
		t.Errorf("line[0] = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "[stdout] hello") {
		t.Errorf("line[1] = %q", lines[1])
	}
}
