package usagelog

import (
	"context"
	"testing"
	"time"

	gutils "github.com/Laisky/go-utils/v6"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func expectMigrations(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tool_usage_logs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_tool_usage_logs_tool_name").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_tool_usage_logs_status").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_tool_usage_logs_occurred_at").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
}

func TestServiceRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectMigrations(mock)
	svc, err := NewService(mock, nil, func() time.Time {
		return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	})
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO tool_usage_logs").
		WithArgs(
			pgxmock.AnyArg(),
			"get_file_content",
			StatusError,
			"not_found",
			int64(1500),
			pgxmock.AnyArg(),
			"file not found",
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, svc.Record(context.Background(), RecordInput{
		ToolName:     "get_file_content",
		Status:       StatusError,
		ErrorKind:    "not_found",
		Duration:     1500 * time.Millisecond,
		Parameters:   map[string]any{"owner": "octocat", "repo": "Hello-World", "path": "missing.txt"},
		ErrorMessage: "file not found",
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceRecordRequiresToolName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectMigrations(mock)
	svc, err := NewService(mock, nil, nil)
	require.NoError(t, err)

	require.Error(t, svc.Record(context.Background(), RecordInput{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectMigrations(mock)
	svc, err := NewService(mock, nil, nil)
	require.NoError(t, err)

	occurred := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	recordID := gutils.UUID7Bytes()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("get_branches").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT id, tool_name, status").
		WithArgs("get_branches", 0, 20).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "tool_name", "status", "error_kind", "duration_millis",
			"parameters", "error_message", "occurred_at", "created_at", "updated_at",
		}).AddRow(
			recordID, "get_branches", StatusSuccess, "", int64(42),
			[]byte(`{"owner":"octocat"}`), "", occurred, occurred, occurred,
		))

	list, err := svc.List(context.Background(), ListOptions{ToolName: "get_branches"})
	require.NoError(t, err)
	require.Equal(t, int64(1), list.Total)
	require.Len(t, list.Entries, 1)

	entry := list.Entries[0]
	require.Equal(t, recordID, entry.ID)
	require.Equal(t, "get_branches", entry.ToolName)
	require.Equal(t, StatusSuccess, entry.Status)
	require.Equal(t, int64(42), entry.DurationMillis)
	require.Equal(t, "octocat", entry.Parameters["owner"])
	require.NoError(t, mock.ExpectationsWereMet())
}
