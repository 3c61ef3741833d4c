package usagelog

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
)

// NewHTTPHandler builds an HTTP handler exposing the usage log APIs.
// Either sink may be nil; the corresponding endpoint then responds 503.
func NewHTTPHandler(service *Service, store *FileStore, logger logSDK.Logger) http.Handler {
	return &httpHandler{service: service, store: store, logger: logger}
}

type httpHandler struct {
	service *Service
	store   *FileStore
	logger  logSDK.Logger
}

func (h *httpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/usage/logs" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case strings.HasPrefix(r.URL.Path, "/usage/stats/") && r.Method == http.MethodGet:
		h.handleStats(w, r)
	default:
		h.notFound(w, r)
	}
}

func (h *httpHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	logger := h.logFromCtx(ctx)

	if h.service == nil {
		h.writeErrorWithLogger(w, logger, http.StatusServiceUnavailable, "usage log service unavailable")
		return
	}

	q := r.URL.Query()
	page := parseIntDefault(q.Get("page"), 1)
	pageSize := parseIntDefault(q.Get("page_size"), 20)
	sortOrder := q.Get("sort_order")
	tool := q.Get("tool")
	status := q.Get("status")

	from, _ := parseDateParam(q.Get("from"))
	to, hasTime := parseDateParam(q.Get("to"))
	if !to.IsZero() {
		if !hasTime {
			to = to.AddDate(0, 0, 1)
		}
	}

	logger.Debug("usage log list request",
		zap.String("tool", tool),
		zap.String("status", status),
		zap.Int("page", page),
		zap.Int("page_size", pageSize),
		zap.String("sort_order", strings.ToUpper(sortOrder)),
		zap.Time("from", from),
		zap.Time("to", to),
	)

	result, err := h.service.List(ctx, ListOptions{
		Page:      page,
		PageSize:  pageSize,
		ToolName:  tool,
		Status:    status,
		SortOrder: sortOrder,
		From:      from,
		To:        to,
	})
	if err != nil {
		logger.Error("list usage logs", zap.Error(err))
		h.writeErrorWithLogger(w, logger, http.StatusInternalServerError, "failed to list usage logs")
		return
	}

	entries := make([]map[string]any, 0, len(result.Entries))
	for _, entry := range result.Entries {
		entries = append(entries, map[string]any{
			"id":          entry.ID.String(),
			"tool":        entry.ToolName,
			"status":      entry.Status,
			"error_kind":  entry.ErrorKind,
			"duration_ms": entry.DurationMillis,
			"parameters":  entry.Parameters,
			"error":       entry.ErrorMessage,
			"occurred_at": entry.OccurredAt,
			"created_at":  entry.CreatedAt,
			"updated_at":  entry.UpdatedAt,
		})
	}

	totalPages := 0
	if pageSize > 0 {
		totalPages = int(math.Ceil(float64(result.Total) / float64(pageSize)))
	}

	response := map[string]any{
		"data": entries,
		"pagination": map[string]any{
			"page":        page,
			"page_size":   pageSize,
			"total_items": result.Total,
			"total_pages": totalPages,
			"has_next":    page < totalPages,
			"has_prev":    page > 1 && totalPages > 0,
		},
		"sort": map[string]any{
			"order": strings.ToUpper(sortOrder),
		},
		"filters": map[string]any{
			"tool":         tool,
			"status":       status,
			"from":         from,
			"to_exclusive": to,
		},
	}

	h.writeJSON(w, response)
}

func (h *httpHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	logger := h.logFromCtx(r.Context())

	if h.store == nil {
		h.writeErrorWithLogger(w, logger, http.StatusServiceUnavailable, "usage stats store unavailable")
		return
	}

	tool := strings.TrimPrefix(r.URL.Path, "/usage/stats/")
	if tool == "" || strings.ContainsAny(tool, `/\`) || strings.Contains(tool, "..") {
		h.writeErrorWithLogger(w, logger, http.StatusBadRequest, "invalid tool name")
		return
	}

	stats, err := h.store.Stats(tool)
	if err != nil {
		logger.Error("load usage stats", zap.Error(err), zap.String("tool", tool))
		h.writeErrorWithLogger(w, logger, http.StatusInternalServerError, "failed to load usage stats")
		return
	}

	h.writeJSON(w, stats)
}

func (h *httpHandler) notFound(w http.ResponseWriter, r *http.Request) {
	logger := h.logFromCtx(r.Context())
	h.writeErrorWithLogger(w, logger, http.StatusNotFound, "resource not found")
}

// writeErrorWithLogger writes an error response with the provided logger for context-aware logging.
func (h *httpHandler) writeErrorWithLogger(w http.ResponseWriter, logger logSDK.Logger, status int, message string) {
	if status >= 500 {
		logger.Error("usage log http error", zap.Int("status", status), zap.String("message", message))
	} else {
		logger.Warn("usage log http warning", zap.Int("status", status), zap.String("message", message))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}

func (h *httpHandler) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// logFromCtx extracts a context-aware logger from the context.
// Falls back to the handler's logger or a shared logger if context logger is unavailable.
func (h *httpHandler) logFromCtx(ctx context.Context) logSDK.Logger {
	if logger := gmw.GetLogger(ctx); logger != nil {
		return logger.Named("usage_log_http")
	}
	if h.logger != nil {
		return h.logger
	}
	return logSDK.Shared.Named("usage_log_http")
}

func parseIntDefault(value string, def int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return def
	}
	num, err := strconv.Atoi(trimmed)
	if err != nil {
		return def
	}
	return num
}

func parseDateParam(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}

	if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return ts.UTC(), true
	}

	const dateLayout = "2006-01-02"
	if ts, err := time.ParseInLocation(dateLayout, trimmed, time.UTC); err == nil {
		return ts, false
	}

	return time.Time{}, false
}
