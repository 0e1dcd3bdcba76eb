package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"revsync/cmd/internal/hub"
	"revsync/cmd/internal/jobs"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestMux(cfg Config) *http.ServeMux {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	metrics := hub.NewMetrics(reg)
	store := hub.NewStore(log, hub.WithMetrics(metrics))
	ws := hub.NewGateway(log, store, metrics, hub.GatewayConfig{})
	feed := jobs.NewFeed(log)

	mux := http.NewServeMux()
	registerHTTP(mux, log, cfg, nil, false, reg, ws, jobs.NewHandler(log, feed))
	return mux
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestMux(Config{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status=%q want ok", body["status"])
	}
	if body["timestamp"] == "" {
		t.Fatal("missing timestamp")
	}
}

func TestReadyzWithoutDB(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		requireDB bool
		want      int
	}{
		{name: "db optional", requireDB: false, want: http.StatusOK},
		{name: "db required but absent", requireDB: true, want: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(newTestMux(Config{ReadinessRequireDB: tc.requireDB}))
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/readyz")
			if err != nil {
				t.Fatalf("GET /readyz: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("status=%d want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestMux(Config{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 {
		t.Fatal("empty metrics exposition")
	}
}
