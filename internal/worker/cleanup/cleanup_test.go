package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// Executor インターフェースに対するモック実装。
// 実行されたクエリと引数を順に記録する。
type mockExecutor struct {
	queries [][]interface{} // [query, args...]
	result  sql.Result
	err     error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	call := append([]interface{}{query}, args...)
	m.queries = append(m.queries, call)
	return m.result, m.err
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewCleanupJob_SetsRetentionDays(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{result: &fakeResult{rowsAffected: 0}}
	job := NewCleanupJob(mock, logger)

	if job.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", job.RetentionDays)
	}
}

func TestCleanupJob_Run_DeletesJobsAndEmailLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{result: &fakeResult{rowsAffected: 5}}
	job := NewCleanupJob(mock, logger)

	err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if len(mock.queries) != 2 {
		t.Fatalf("クエリ実行数 = %d, want 2", len(mock.queries))
	}

	jobQuery := mock.queries[0][0].(string)
	if !strings.Contains(jobQuery, "DELETE FROM jobs") {
		t.Errorf("クエリに 'DELETE FROM jobs' が含まれていない: %s", jobQuery)
	}
	// pending/runningのジョブは削除されないこと
	if !strings.Contains(jobQuery, "'succeeded'") || !strings.Contains(jobQuery, "'dead'") {
		t.Errorf("クエリに終端状態の条件が含まれていない: %s", jobQuery)
	}
	if !strings.Contains(jobQuery, "created_at") {
		t.Errorf("クエリに 'created_at' 条件が含まれていない: %s", jobQuery)
	}

	logQuery := mock.queries[1][0].(string)
	if !strings.Contains(logQuery, "DELETE FROM email_logs") {
		t.Errorf("クエリに 'DELETE FROM email_logs' が含まれていない: %s", logQuery)
	}
}

func TestCleanupJob_Run_UsesIntervalParameter(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{result: &fakeResult{rowsAffected: 0}}
	job := NewCleanupJob(mock, logger)

	_ = job.Run(context.Background())

	// 引数に30日のinterval文字列が渡されること
	if len(mock.queries) == 0 || len(mock.queries[0]) < 2 {
		t.Fatal("ExecContext に引数が渡されなかった")
	}

	argStr, ok := mock.queries[0][1].(string)
	if !ok {
		t.Fatalf("第1引数が string ではない: %T", mock.queries[0][1])
	}
	if argStr != "30 days" {
		t.Errorf("interval引数 = %q, want %q", argStr, "30 days")
	}
}

func TestCleanupJob_Run_LogsDeletedCounts(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{result: &fakeResult{rowsAffected: 42}}
	job := NewCleanupJob(mock, logger)

	_ = job.Run(context.Background())

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if count, ok := entry["deleted_jobs"]; ok {
			if count == float64(42) && entry["deleted_email_logs"] == float64(42) {
				found = true
				break
			}
		}
	}
	if !found {
		t.Errorf("ログに deleted_jobs=42 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_ReturnsErrorOnDBFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{result: nil, err: sql.ErrConnDone}
	job := NewCleanupJob(mock, logger)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("DBエラー時に Run() は nil でないエラーを返すべき")
	}

	// エラーログが出力されていること
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_Idempotent_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{result: &fakeResult{rowsAffected: 0}}
	job := NewCleanupJob(mock, logger)

	// 削除対象がなくてもエラーにならない
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("1回目の Run() がエラーを返した: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("2回目の Run() がエラーを返した: %v", err)
	}
}

func TestCleanupJob_Run_LogsExecutionTime(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{result: &fakeResult{rowsAffected: 3}}
	job := NewCleanupJob(mock, logger)

	_ = job.Run(context.Background())

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if _, ok := entry["duration_ms"]; ok {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("ログに duration_ms が記録されていない。ログ出力: %s", buf.String())
	}
}

// TestCleanupJob_CustomRetentionDays はRetentionDaysをカスタマイズした場合のテスト。
func TestCleanupJob_CustomRetentionDays(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{result: &fakeResult{rowsAffected: 0}}
	job := NewCleanupJob(mock, logger)
	job.RetentionDays = 90 // カスタム保持日数

	_ = job.Run(context.Background())

	argStr, ok := mock.queries[0][1].(string)
	if !ok {
		t.Fatalf("第1引数が string ではない: %T", mock.queries[0][1])
	}
	if argStr != "90 days" {
		t.Errorf("interval引数 = %q, want %q", argStr, "90 days")
	}
}
