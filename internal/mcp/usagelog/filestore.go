package usagelog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/github-reader-mcp/library/log"
)

// maxRecentErrors bounds the error history kept per tool.
const maxRecentErrors = 10

// ToolStats is the aggregate usage document kept per tool in the file store.
type ToolStats struct {
	ToolName          string       `json:"tool_name"`
	TotalCalls        int64        `json:"total_calls"`
	SuccessfulCalls   int64        `json:"successful_calls"`
	FailedCalls       int64        `json:"failed_calls"`
	TotalDurationMs   int64        `json:"total_duration_ms"`
	AverageDurationMs float64      `json:"average_duration_ms"`
	LastCalled        time.Time    `json:"last_called"`
	RecentErrors      []ErrorEntry `json:"recent_errors,omitempty"`
}

// ErrorEntry is one retained failure in a tool's recent error history.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message"`
}

// FileStore aggregates usage records into one JSON statistics file per tool.
// It is safe for concurrent writers; a single mutex serializes the
// read-modify-write cycle so per-tool counters never lose updates.
type FileStore struct {
	dir    string
	logger logSDK.Logger
	clock  Clock

	mu sync.Mutex
}

// NewFileStore constructs a FileStore writing under dir, creating it if needed.
func NewFileStore(dir string, logger logSDK.Logger, clock Clock) (*FileStore, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, errors.New("usage directory is required")
	}
	if logger == nil {
		logger = log.Logger.Named("usage_log_file")
	}
	if clock == nil {
		clock = func() time.Time {
			return time.Now().UTC()
		}
	}

	if err := os.MkdirAll(trimmed, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create usage directory %q", trimmed)
	}

	return &FileStore{dir: trimmed, logger: logger, clock: clock}, nil
}

// Record folds one invocation into the tool's aggregate statistics file.
func (s *FileStore) Record(ctx context.Context, input RecordInput) error {
	toolName := strings.TrimSpace(input.ToolName)
	if toolName == "" {
		return errors.New("tool name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.load(toolName)
	if err != nil {
		return errors.Wrap(err, "load usage stats")
	}

	stats.ToolName = toolName
	stats.TotalCalls++
	stats.TotalDurationMs += input.Duration.Milliseconds()
	stats.AverageDurationMs = float64(stats.TotalDurationMs) / float64(stats.TotalCalls)
	stats.LastCalled = s.clock()

	if input.Status == StatusError {
		stats.FailedCalls++
		if msg := strings.TrimSpace(input.ErrorMessage); msg != "" {
			stats.RecentErrors = append(stats.RecentErrors, ErrorEntry{
				Timestamp: s.clock(),
				Kind:      strings.TrimSpace(input.ErrorKind),
				Message:   msg,
			})
			if len(stats.RecentErrors) > maxRecentErrors {
				stats.RecentErrors = stats.RecentErrors[len(stats.RecentErrors)-maxRecentErrors:]
			}
		}
	} else {
		stats.SuccessfulCalls++
	}

	if err := s.save(toolName, stats); err != nil {
		return errors.Wrap(err, "save usage stats")
	}

	s.logger.Debug("recorded usage stats", zap.String("tool", toolName))
	return nil
}

// Stats returns the current aggregate document for a tool.
func (s *FileStore) Stats(toolName string) (*ToolStats, error) {
	trimmed := strings.TrimSpace(toolName)
	if trimmed == "" {
		return nil, errors.New("tool name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(trimmed)
}

func (s *FileStore) path(toolName string) string {
	return filepath.Join(s.dir, toolName+".json")
}

func (s *FileStore) load(toolName string) (*ToolStats, error) {
	data, err := os.ReadFile(s.path(toolName))
	if err != nil {
		if os.IsNotExist(err) {
			return &ToolStats{ToolName: toolName}, nil
		}
		return nil, errors.Wrap(err, "read usage stats file")
	}

	var stats ToolStats
	if err := json.Unmarshal(data, &stats); err != nil {
		// A corrupt stats file should not poison future recording.
		s.logger.Warn("reset corrupt usage stats file",
			zap.Error(err), zap.String("tool", toolName))
		return &ToolStats{ToolName: toolName}, nil
	}

	return &stats, nil
}

// save writes atomically via a temp file rename so concurrent readers never
// observe a partially written document.
func (s *FileStore) save(toolName string, stats *ToolStats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal usage stats")
	}

	tmp, err := os.CreateTemp(s.dir, toolName+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp usage stats file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "write temp usage stats file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "close temp usage stats file")
	}

	if err := os.Rename(tmpName, s.path(toolName)); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "replace usage stats file")
	}

	return nil
}
