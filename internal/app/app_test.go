package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/foodmark/internal/config"
	"github.com/hitoshi/foodmark/internal/metrics"
	"github.com/hitoshi/foodmark/internal/model"
	"github.com/hitoshi/foodmark/internal/security"
)

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	setTestEnv(t)
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}

	if !strings.HasPrefix(cfg.DatabaseURL, "postgres://") {
		t.Errorf("DatabaseURL = %q, want postgres://...", cfg.DatabaseURL)
	}

	// グローバルロガーがJSON出力になっていること
	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

// TestInit_AppliesLogLevel はLOG_LEVELがグローバルロガーに反映されることを検証する。
func TestInit_AppliesLogLevel(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "error")
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	if _, err := Init(&buf); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	slog.Default().Warn("should be filtered")
	if buf.Len() != 0 {
		t.Errorf("warn log written at error level: %s", buf.String())
	}
	slog.Default().Error("should be written")
	if !strings.Contains(buf.String(), "should be written") {
		t.Errorf("error log missing: %s", buf.String())
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	clearRequiredEnv(t)
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

type staticSubmissions struct {
	items []*model.Submission
}

func (s *staticSubmissions) ListApproved(ctx context.Context) ([]*model.Submission, error) {
	return s.items, nil
}

// TestBuildCatalogProvider_MergesFileAndSubmissions はデータディレクトリと承認済み投稿が統合されることを検証する。
func TestBuildCatalogProvider_MergesFileAndSubmissions(t *testing.T) {
	dir := t.TempDir()
	data := `{"id":"pho-ha-noi","ten":"Phở Hà Nội","thanhPho":"Hà Nội"}`
	if err := os.WriteFile(filepath.Join(dir, "pho.json"), []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write catalog file: %v", err)
	}

	cfg := &config.Config{CatalogDir: dir}
	subs := &staticSubmissions{items: []*model.Submission{
		{ID: "sub-1", Name: "Bún chả", City: "Hà Nội", IsApproved: true},
	}}

	provider := buildCatalogProvider(cfg, security.NewSSRFGuard(), subs)
	items, err := provider.Items(context.Background())
	if err != nil {
		t.Fatalf("Items() error: %v", err)
	}

	ids := map[string]bool{}
	for _, it := range items {
		ids[it.ID] = true
	}
	if !ids["pho-ha-noi"] || !ids["sub-1"] {
		t.Errorf("items = %v, want pho-ha-noi and sub-1", ids)
	}
}

type fakePinger struct {
	err error
}

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }

func TestWorkerRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	collector.RecordCleanup("sessions", 4)

	tests := []struct {
		name       string
		path       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{"health", "/health", nil, http.StatusOK, "ok"},
		{"health DB停止", "/health", errors.New("down"), http.StatusServiceUnavailable, "unavailable"},
		{"metrics", "/metrics", nil, http.StatusOK, "foodmark_cleanup_deleted_total"},
		{"その他のパス", "/api/items", nil, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := workerRouter(fakePinger{err: tt.pingErr}, reg)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestMaskDatabaseURL(t *testing.T) {
	got := maskDatabaseURL("postgres://user:secret@db:5432/foodmark")
	if strings.Contains(got, "secret") {
		t.Errorf("masked URL leaks password: %q", got)
	}
	if got := maskDatabaseURL("short"); got != "***" {
		t.Errorf("maskDatabaseURL(short) = %q, want ***", got)
	}
}
