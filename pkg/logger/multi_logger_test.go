package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMultiLogger_WritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	ml.LogJobEvent("job_started", zap.String("id", "job-1"), zap.String("url", "https://youtu.be/abc"))
	ml.LogJobEvent("job_finished", zap.String("id", "job-1"), zap.String("state", "succeeded"))
	ml.LogAppError("Failed to update job", zap.String("id", "job-1"))
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)
	jobs, err := reader.ReadLogs(CategoryJob, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job_started", jobs[0].Message)
	assert.Equal(t, "info", jobs[0].Level)
	assert.Equal(t, "job", jobs[0].Category)
	assert.Equal(t, "job-1", jobs[0].Fields["id"])
	assert.NotEmpty(t, jobs[0].Timestamp)

	errs, err := reader.ReadLogs(CategoryError, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "error", errs[0].Level)
}

func TestMultiLogger_RotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)
	defer ml.Close()

	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)
	ml.now = func() time.Time { return day }
	ml.LogJobEvent("before")

	day = day.Add(2 * time.Minute)
	ml.LogJobEvent("after")
	require.NoError(t, ml.Sync())

	_, err = os.Stat(filepath.Join(dir, "job-20260302.log"))
	assert.NoError(t, err)

	entries, err := NewLogReader(dir).ReadLogs(CategoryJob, day, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "after", entries[0].Message)
}

func TestNewMultiLogger_RequiresDir(t *testing.T) {
	_, err := NewMultiLogger(MultiLoggerConfig{})
	assert.Error(t, err)
}

func TestLogReader_LimitAndSearch(t *testing.T) {
	dir := t.TempDir()
	reader := NewLogReader(dir)
	now := time.Now()
	lines := `{"level":"info","ts":"2026-01-01T00:00:00Z","msg":"job_started","id":"alpha"}
{"level":"info","ts":"2026-01-01T00:00:01Z","msg":"job_finished","id":"alpha"}
not json at all
{"level":"info","ts":"2026-01-01T00:00:02Z","msg":"job_started","id":"bravo"}
`
	require.NoError(t, os.WriteFile(reader.GetLogPath(CategoryJob, now), []byte(lines), 0644))

	last, err := reader.ReadLogs(CategoryJob, now, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "not json at all", last[0].Message)
	assert.Equal(t, "bravo", last[1].Fields["id"])

	found, err := reader.SearchLogs(CategoryJob, now, "FINISHED", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "alpha", found[0].Fields["id"])

	byField, err := reader.SearchLogs(CategoryJob, now, "bravo", 10)
	require.NoError(t, err)
	require.Len(t, byField, 1)

	missing, err := reader.ReadLogs(CategoryError, now, 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory(CategoryJob))
	assert.True(t, ValidCategory(CategoryError))
	assert.True(t, ValidCategory(CategoryDownload))
	assert.False(t, ValidCategory("queue"))
}
