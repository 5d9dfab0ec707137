package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type execCall struct {
	query string
	args  []interface{}
}

// mockExecutor はクエリ毎の結果を返すExecutorモック。
// failOn を含むクエリはエラーを返す。
type mockExecutor struct {
	mu      sync.Mutex
	calls   []execCall
	results map[string]int64 // テーブル名 → 削除件数
	failOn  string
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, execCall{query: query, args: args})
	if m.failOn != "" && strings.Contains(query, m.failOn) {
		return nil, errors.New("connection reset")
	}
	for table, n := range m.results {
		if strings.Contains(query, "FROM "+table+" ") {
			return &fakeResult{rowsAffected: n}, nil
		}
	}
	return &fakeResult{}, nil
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type recorded struct {
	target  string
	deleted int64
}

type mockRecorder struct {
	records []recorded
}

func (m *mockRecorder) RecordCleanup(target string, deleted int64) {
	m.records = append(m.records, recorded{target, deleted})
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestNewCleanupJob_Defaults(t *testing.T) {
	job := NewCleanupJob(&mockExecutor{}, nil, nil)

	if job.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", job.RetentionDays)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run() with nil logger/recorder returned error: %v", err)
	}
}

func TestCleanupJob_Run_DeletesBothTargets(t *testing.T) {
	var buf bytes.Buffer
	db := &mockExecutor{results: map[string]int64{"sessions": 3, "submitted_items": 2}}
	rec := &mockRecorder{}
	job := NewCleanupJob(db, newTestLogger(&buf), rec)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if len(db.calls) != 2 {
		t.Fatalf("ExecContext calls = %d, want 2", len(db.calls))
	}
	if !strings.Contains(db.calls[0].query, "DELETE FROM sessions") ||
		!strings.Contains(db.calls[0].query, "expires_at") {
		t.Errorf("session query = %q", db.calls[0].query)
	}
	sub := db.calls[1]
	if !strings.Contains(sub.query, "DELETE FROM submitted_items") {
		t.Errorf("submission query = %q", sub.query)
	}
	// 承認済みの投稿はカタログの一部なので消してはならない
	if !strings.Contains(sub.query, "is_approved = false") {
		t.Errorf("承認済みの投稿を対象外にしていない: %q", sub.query)
	}
	if len(sub.args) != 1 || sub.args[0] != "30 days" {
		t.Errorf("submission args = %v, want [30 days]", sub.args)
	}

	want := []recorded{{TargetSessions, 3}, {TargetSubmissions, 2}}
	if len(rec.records) != len(want) {
		t.Fatalf("records = %v, want %v", rec.records, want)
	}
	for i := range want {
		if rec.records[i] != want[i] {
			t.Errorf("records[%d] = %v, want %v", i, rec.records[i], want[i])
		}
	}
}

func TestCleanupJob_Run_UsesRetentionDays(t *testing.T) {
	db := &mockExecutor{}
	job := NewCleanupJob(db, nil, nil)
	job.RetentionDays = 7

	_ = job.Run(context.Background())

	if got := db.calls[1].args[0]; got != "7 days" {
		t.Errorf("interval = %v, want %q", got, "7 days")
	}
}

func TestCleanupJob_Run_LogsDeletedCounts(t *testing.T) {
	var buf bytes.Buffer
	db := &mockExecutor{results: map[string]int64{"sessions": 42}}
	job := NewCleanupJob(db, newTestLogger(&buf), nil)

	_ = job.Run(context.Background())

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("log is not JSON: %v (%s)", err, buf.String())
	}
	if entry["deleted_sessions"] != float64(42) {
		t.Errorf("deleted_sessions = %v, want 42", entry["deleted_sessions"])
	}
	if entry["deleted_submissions"] != float64(0) {
		t.Errorf("deleted_submissions = %v, want 0", entry["deleted_submissions"])
	}
}

// TestCleanupJob_Run_PartialFailure は片方が失敗しても、もう片方は実行されることを検証する。
func TestCleanupJob_Run_PartialFailure(t *testing.T) {
	tests := []struct {
		name       string
		failOn     string
		wantTarget string
		wantRecord string
	}{
		{"セッション削除が失敗", "sessions", TargetSessions, TargetSubmissions},
		{"投稿削除が失敗", "submitted_items", TargetSubmissions, TargetSessions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			db := &mockExecutor{failOn: tt.failOn}
			rec := &mockRecorder{}
			job := NewCleanupJob(db, newTestLogger(&buf), rec)

			err := job.Run(context.Background())
			if err == nil {
				t.Fatal("Run() should return error")
			}
			if !strings.Contains(err.Error(), tt.wantTarget) {
				t.Errorf("error = %q, want it to mention %q", err.Error(), tt.wantTarget)
			}
			if len(db.calls) != 2 {
				t.Errorf("ExecContext calls = %d, want 2", len(db.calls))
			}
			if len(rec.records) != 1 || rec.records[0].target != tt.wantRecord {
				t.Errorf("records = %v, want only %q", rec.records, tt.wantRecord)
			}
			if !strings.Contains(buf.String(), `"level":"ERROR"`) {
				t.Errorf("error log not written: %s", buf.String())
			}
		})
	}
}

func TestCleanupJob_RunLoop_RunsImmediatelyAndStops(t *testing.T) {
	db := &mockExecutor{}
	job := NewCleanupJob(db, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.RunLoop(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for db.callCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("first run did not happen at start-up")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunLoop did not stop after cancel")
	}
}
