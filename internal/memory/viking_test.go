package memory

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/vikingbridge/internal/bridge"
	"github.com/nextlevelbuilder/vikingbridge/internal/config"
	"github.com/nextlevelbuilder/vikingbridge/internal/retrieve"
)

// storeStub serves just enough of the store API for the backend facade.
type storeStub struct {
	srv *httptest.Server

	healthStatus int
	vlmHealthy   bool
	dbHealthy    bool
	waitCalls    int
}

func newStoreStub(t *testing.T) *storeStub {
	t.Helper()
	s := &storeStub{healthStatus: http.StatusOK, vlmHealthy: true, dbHealthy: true}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/health":
			w.WriteHeader(s.healthStatus)
		case r.URL.Path == "/api/v1/system/wait":
			s.waitCalls++
			fmt.Fprint(w, `{"status":"ok"}`)
		case strings.HasPrefix(r.URL.Path, "/api/v1/observer/vlm"):
			fmt.Fprintf(w, `{"status":"ok","result":{"is_healthy":%v}}`, s.vlmHealthy)
		case strings.HasPrefix(r.URL.Path, "/api/v1/observer/vikingdb"):
			fmt.Fprintf(w, `{"status":"ok","result":{"is_healthy":%v}}`, s.dbHealthy)
		default:
			fmt.Fprint(w, `{"status":"ok","result":{}}`)
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func newTestBackend(t *testing.T, stub *storeStub) *VikingBackend {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Memory.Enabled = true
	cfg.Memory.Endpoint = stub.srv.URL
	cfg.Memory.TimeoutMs = 2000
	cfg.Memory.Outbox.Enabled = false
	cfg.Sessions.StorePath = filepath.Join(dir, "sessions.json")

	reg := bridge.NewRegistry()
	t.Cleanup(reg.StopAll)
	backend, err := NewVikingBackend(context.Background(), "main", cfg, reg, retrieve.NewDiagnostics())
	if err != nil {
		t.Fatal(err)
	}
	return backend
}

func TestStatus_Healthy(t *testing.T) {
	stub := newStoreStub(t)
	backend := newTestBackend(t, stub)

	snap := backend.Status(context.Background())
	if !snap.Healthy {
		t.Errorf("healthy = false, error = %q", snap.Error)
	}
	if snap.Backend != "openviking" {
		t.Errorf("backend = %q", snap.Backend)
	}
	if snap.Endpoint != stub.srv.URL {
		t.Errorf("endpoint = %q, want %q", snap.Endpoint, stub.srv.URL)
	}
	if snap.Outbox != nil {
		t.Error("outbox stats present with outbox disabled")
	}
}

func TestStatus_Unreachable(t *testing.T) {
	stub := newStoreStub(t)
	stub.healthStatus = http.StatusInternalServerError
	backend := newTestBackend(t, stub)

	snap := backend.Status(context.Background())
	if snap.Healthy {
		t.Error("healthy = true for failing store")
	}
	if snap.Error == "" {
		t.Error("error not recorded")
	}
}

func TestSync_WaitsForStore(t *testing.T) {
	stub := newStoreStub(t)
	backend := newTestBackend(t, stub)

	if err := backend.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if stub.waitCalls != 1 {
		t.Errorf("wait calls = %d, want 1", stub.waitCalls)
	}
}

func TestProbes(t *testing.T) {
	stub := newStoreStub(t)
	stub.dbHealthy = false
	backend := newTestBackend(t, stub)

	if err := backend.ProbeEmbeddingAvailability(context.Background()); err != nil {
		t.Errorf("embedding probe failed: %v", err)
	}
	if err := backend.ProbeVectorAvailability(context.Background()); err == nil {
		t.Error("vector probe passed with unhealthy index")
	}
}

func TestSearch_DisabledBackendReturnsNothing(t *testing.T) {
	stub := newStoreStub(t)
	backend := newTestBackend(t, stub)
	backend.cfg.Memory.Enabled = false

	results, err := backend.Search(context.Background(), "anything", retrieve.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
}
