package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/creditscore/internal/config"
	"github.com/dvloznov/creditscore/internal/lock"
	"github.com/dvloznov/creditscore/internal/logger"
	"github.com/dvloznov/creditscore/internal/store/inmemory"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{MaxUpload: 1 << 20},
		Store:  config.StoreConfig{Backend: "memory"},
		Blob:   config.BlobConfig{Backend: "memory"},
		Lock:   config.LockConfig{Backend: "local"},
		Oracle: config.OracleConfig{MaxAttempts: 1, Timeout: time.Second},
		Jobs:   config.JobsConfig{BufferSize: 4, Workers: 1, MaxRetries: -1},
	}
}

func TestNew_MemoryBackends(t *testing.T) {
	var buf bytes.Buffer
	a, err := New(context.Background(), memoryConfig(), logger.NewWithWriter(&buf))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if _, ok := a.Store.(*inmemory.Store); !ok {
		t.Errorf("store = %T, want *inmemory.Store", a.Store)
	}
	if _, ok := a.Locker.(*lock.KeyedMutex); !ok {
		t.Errorf("locker = %T, want *lock.KeyedMutex", a.Locker)
	}
	if a.Businesses == nil || a.Uploads == nil || a.Statements == nil || a.Scores == nil {
		t.Error("services not built")
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.Backend = "cassandra"

	a, err := New(context.Background(), cfg, logger.NewWithWriter(&bytes.Buffer{}))
	if err == nil || a != nil {
		t.Fatalf("New() = %v, %v; want error", a, err)
	}
	if !strings.Contains(err.Error(), "cassandra") {
		t.Errorf("error = %v", err)
	}
}

func TestHandler_ServesAPI(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), logger.NewWithWriter(&bytes.Buffer{}))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.StartWorkers(ctx); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	body := strings.NewReader(`{"id":"biz-1","name":"Acme Ltd","industry":"retail","country":"GB"}`)
	resp, err = http.Post(srv.URL+"/api/businesses", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	var created map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created["id"] != "biz-1" {
		t.Errorf("created = %v", created)
	}
}

func TestClose_Idempotent(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), logger.NewWithWriter(&bytes.Buffer{}))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("first Close() = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}
