package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/atomhq/atomgw/internal/metrics"
)

func startAdmin(t *testing.T, token string) (*AdminServer, string) {
	t.Helper()

	registry := prometheus.NewRegistry()
	_ = metrics.New(registry)

	m := NewManager(managerConfig(1, 1000), t.TempDir(), "http://127.0.0.1:9999", testLogger(), nil)
	a := NewAdminServer("127.0.0.1:0", token, m, registry, testLogger())
	if err := a.Start(); err != nil {
		t.Fatalf("admin start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return a, "http://" + a.Addr()
}

func TestAdmin_Healthz(t *testing.T) {
	t.Parallel()

	_, base := startAdmin(t, "tok")
	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["ok"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestAdmin_StatusAuth(t *testing.T) {
	t.Parallel()

	_, base := startAdmin(t, "tok")

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "Basic tok", http.StatusUnauthorized},
		{"valid token", "Bearer tok", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, base+"/status", nil)
			if err != nil {
				t.Fatal(err)
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				var status Status
				if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
					t.Fatalf("decode status: %v", err)
				}
				if !status.Enabled || status.InboundPath == "" {
					t.Errorf("status = %+v", status)
				}
			}
		})
	}
}

func TestAdmin_StatusOpenWithoutToken(t *testing.T) {
	t.Parallel()

	_, base := startAdmin(t, "")
	resp, err := http.Get(base + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 when no token configured", resp.StatusCode)
	}
}

func TestAdmin_Metrics(t *testing.T) {
	t.Parallel()

	_, base := startAdmin(t, "tok")
	resp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if _, err := io.ReadAll(resp.Body); err != nil {
		t.Fatal(err)
	}
}
