// Package usagelog persists per-call timing and outcome statistics for the
// MCP tools. Two sinks are provided: a PostgreSQL-backed append-only log and
// a per-tool JSON statistics store.
package usagelog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Laisky/github-reader-mcp/library/log"
)

// Clock provides the current time in UTC.
type Clock func() time.Time

// DB defines the database capabilities required by the usage log service.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service persists and queries tool invocation usage records in PostgreSQL.
type Service struct {
	db     DB
	logger logSDK.Logger
	clock  Clock
}

// ListOptions configures the result set returned by List.
type ListOptions struct {
	Page      int
	PageSize  int
	ToolName  string
	Status    string
	SortOrder string
	From      time.Time
	To        time.Time
}

// Entry represents a single record returned from List.
type Entry struct {
	ID             uuid.UUID
	ToolName       string
	Status         string
	ErrorKind      string
	DurationMillis int64
	Parameters     map[string]any
	ErrorMessage   string
	OccurredAt     time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ListResult packages the results of a List query along with the total count.
type ListResult struct {
	Entries []Entry
	Total   int64
}

const (
	defaultPage = 1
	// defaultPageSize sets the fallback page size for list queries.
	defaultPageSize = 20
	// maxPageSize caps the page size for list queries.
	maxPageSize = 100
	// maxToolNameLength bounds the tool name filter to the column width.
	maxToolNameLength = 64
)

// NewService constructs a Service backed by the supplied PostgreSQL connection.
func NewService(db DB, logger logSDK.Logger, clock Clock) (*Service, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if logger == nil {
		logger = log.Logger.Named("usage_log_service")
	}
	if clock == nil {
		clock = func() time.Time {
			return time.Now().UTC()
		}
	}

	if err := runMigrations(context.Background(), db); err != nil {
		return nil, errors.Wrap(err, "migrate usage log records")
	}

	return &Service{db: db, logger: logger, clock: clock}, nil
}

// Record stores a tool invocation using the provided input.
func (s *Service) Record(ctx context.Context, input RecordInput) error {
	if s == nil {
		return errors.New("usage log service is nil")
	}
	trimmedTool := strings.TrimSpace(input.ToolName)
	if trimmedTool == "" {
		return errors.New("tool name is required")
	}
	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = StatusSuccess
	}

	payload, err := json.Marshal(input.Parameters)
	if err != nil {
		return errors.Wrap(err, "marshal usage log parameters")
	}

	occurred := input.OccurredAt
	if occurred.IsZero() {
		occurred = s.clock()
	}

	record := &Record{
		ID:             gutils.UUID7Bytes(),
		ToolName:       trimmedTool,
		Status:         status,
		ErrorKind:      strings.TrimSpace(input.ErrorKind),
		DurationMillis: input.Duration.Milliseconds(),
		Parameters:     payload,
		ErrorMessage:   strings.TrimSpace(input.ErrorMessage),
		OccurredAt:     occurred,
		CreatedAt:      s.clock(),
		UpdatedAt:      s.clock(),
	}

	// Use a detached context to ensure logging completes even if the request is cancelled.
	ctx = context.WithoutCancel(ctx)
	_, err = s.db.Exec(ctx, `
		INSERT INTO tool_usage_logs (
			id, tool_name, status, error_kind, duration_millis,
			parameters, error_message, occurred_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6::jsonb, $7, $8, $9, $10
		)
	`,
		record.ID,
		record.ToolName,
		record.Status,
		record.ErrorKind,
		record.DurationMillis,
		string(record.Parameters),
		record.ErrorMessage,
		record.OccurredAt,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "create usage log record")
	}

	s.logger.Debug("recorded usage log", zap.String("tool", trimmedTool), zap.String("status", status))
	return nil
}

// List retrieves records that match the provided filters and pagination options.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if s == nil {
		return nil, errors.New("usage log service is nil")
	}

	toolName := strings.TrimSpace(opts.ToolName)
	if len(toolName) > maxToolNameLength {
		return nil, errors.Errorf("tool name filter exceeds %d characters", maxToolNameLength)
	}

	page := opts.Page
	if page < 1 {
		page = defaultPage
	}
	size := opts.PageSize
	if size <= 0 {
		size = defaultPageSize
	} else if size > maxPageSize {
		size = maxPageSize
	}

	clauses := make([]string, 0, 4)
	args := make([]any, 0, 6)
	argID := 1
	if toolName != "" {
		clauses = append(clauses, fmt.Sprintf("tool_name = $%d", argID))
		args = append(args, toolName)
		argID++
	}
	if status := strings.TrimSpace(opts.Status); status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", argID))
		args = append(args, status)
		argID++
	}
	if !opts.From.IsZero() {
		clauses = append(clauses, fmt.Sprintf("occurred_at >= $%d", argID))
		args = append(args, opts.From)
		argID++
	}
	if !opts.To.IsZero() {
		clauses = append(clauses, fmt.Sprintf("occurred_at < $%d", argID))
		args = append(args, opts.To)
		argID++
	}
	whereSQL := ""
	if len(clauses) > 0 {
		whereSQL = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int64
	countSQL := "SELECT COUNT(*) FROM tool_usage_logs" + whereSQL
	if err := s.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "count usage log records")
	}

	orderDirection := strings.ToUpper(opts.SortOrder)
	if orderDirection != "ASC" {
		orderDirection = "DESC"
	}
	offset := (page - 1) * size
	listSQL := fmt.Sprintf(`
		SELECT id, tool_name, status, error_kind, duration_millis,
			parameters, error_message, occurred_at, created_at, updated_at
		FROM tool_usage_logs
		%s
		ORDER BY occurred_at %s
		OFFSET $%d LIMIT $%d
	`, whereSQL, orderDirection, argID, argID+1)
	listArgs := append(args, offset, size)
	rows, err := s.db.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, errors.Wrap(err, "query usage log records")
	}
	defer rows.Close()

	entries := make([]Entry, 0, size)
	for rows.Next() {
		var record Record
		if scanErr := rows.Scan(
			&record.ID,
			&record.ToolName,
			&record.Status,
			&record.ErrorKind,
			&record.DurationMillis,
			&record.Parameters,
			&record.ErrorMessage,
			&record.OccurredAt,
			&record.CreatedAt,
			&record.UpdatedAt,
		); scanErr != nil {
			return nil, errors.Wrap(scanErr, "scan usage log record")
		}

		params := map[string]any{}
		if len(record.Parameters) > 0 {
			if err := json.Unmarshal(record.Parameters, &params); err != nil {
				s.logger.Warn("decode usage log parameters", zap.Error(err), zap.String("record_id", record.ID.String()))
				params = map[string]any{}
			}
		}

		entries = append(entries, Entry{
			ID:             record.ID,
			ToolName:       record.ToolName,
			Status:         record.Status,
			ErrorKind:      record.ErrorKind,
			DurationMillis: record.DurationMillis,
			Parameters:     params,
			ErrorMessage:   record.ErrorMessage,
			OccurredAt:     record.OccurredAt,
			CreatedAt:      record.CreatedAt,
			UpdatedAt:      record.UpdatedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate usage log rows")
	}

	return &ListResult{Entries: entries, Total: total}, nil
}

// runMigrations creates the usage log table and indexes when absent.
func runMigrations(ctx context.Context, db DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tool_usage_logs (
			id UUID PRIMARY KEY,
			tool_name VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL,
			error_kind VARCHAR(32),
			duration_millis BIGINT,
			parameters JSONB,
			error_message TEXT,
			occurred_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tool_usage_logs_tool_name ON tool_usage_logs (tool_name)`,
		`CREATE INDEX IF NOT EXISTS idx_tool_usage_logs_status ON tool_usage_logs (status)`,
		`CREATE INDEX IF NOT EXISTS idx_tool_usage_logs_occurred_at ON tool_usage_logs (occurred_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "execute usage log migration")
		}
	}

	return nil
}

var _ DB = (*pgxpool.Pool)(nil)
