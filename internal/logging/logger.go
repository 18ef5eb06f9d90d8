package logging

import (
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"
)

var (
	// Logger is the global structured logger instance
	Logger *slog.Logger
)

// Init initializes the global structured logger
func Init(level slog.Level) {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Format time as ISO8601
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	handler := slog.NewJSONHandler(os.Stderr, opts)
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel converts a string log level to slog.Level
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "info", "INFO":
		return slog.LevelInfo
	case "warn", "WARN":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper functions for common logging patterns

// RedactURL removes secrets from URL logs while retaining debugging value.
// It strips userinfo and masks query parameter values. Signed download URLs
// carry credentials in the query string, so the values never reach the log.
func RedactURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed == nil {
		return rawURL
	}

	parsed.User = nil

	if parsed.RawQuery != "" {
		query := parsed.Query()
		for key := range query {
			query.Set(key, "***")
		}
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

// LogSessionStart logs a successful login
func LogSessionStart(endpoint, username string) {
	if Logger == nil {
		return
	}
	Logger.Info("session started",
		"event", "session_start",
		"endpoint", endpoint,
		"username", username)
}

// LogSessionEnd logs logout, including logout failures
func LogSessionEnd(err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Warn("session end failed",
			"event", "session_end_error",
			"error", err)
	} else {
		Logger.Info("session ended",
			"event", "session_end")
	}
}

// LogSceneInsert logs persistence of one scene's metadata
func LogSceneInsert(sceneID string, link string) {
	if Logger == nil {
		return
	}
	Logger.Debug("scene stored",
		"event", "scene_insert",
		"scene_id", sceneID,
		"link", RedactURL(link))
}

// LogMarkComplete logs a completion-flag update
func LogMarkComplete(sceneID string) {
	if Logger == nil {
		return
	}
	Logger.Info("scene marked complete",
		"event", "scene_complete",
		"scene_id", sceneID)
}

// LogPrune logs removal of completed rows
func LogPrune(removed int64) {
	if Logger == nil {
		return
	}
	Logger.Info("pruned completed scenes",
		"event", "prune",
		"removed", removed)
}

// LogDBOperation logs database operations and their failures
func LogDBOperation(operation, sceneID string, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error("database operation failed",
			"event", "db_operation_error",
			"operation", operation,
			"scene_id", sceneID,
			"error", err)
	} else {
		Logger.Debug("database operation",
			"event", "db_operation",
			"operation", operation,
			"scene_id", sceneID)
	}
}

// LogTransferStart logs the start of a file transfer
func LogTransferStart(entityID, url string) {
	if Logger == nil {
		return
	}
	Logger.Info("transfer started",
		"event", "transfer_start",
		"entity_id", entityID,
		"url", RedactURL(url))
}

// LogTransferComplete logs successful completion of a file transfer
func LogTransferComplete(entityID, filename string, bytes int64) {
	if Logger == nil {
		return
	}
	Logger.Info("transfer complete",
		"event", "transfer_complete",
		"entity_id", entityID,
		"filename", filename,
		"bytes", bytes)
}

// LogTransferError logs transfer failures
func LogTransferError(entityID, url string, err error) {
	if Logger == nil {
		return
	}
	Logger.Error("transfer failed",
		"event", "transfer_error",
		"entity_id", entityID,
		"url", RedactURL(url),
		"error", err)
}

// LogQueuePoll logs one reconciliation pass over the download queue
func LogQueuePoll(ready, preparing, seen int) {
	if Logger == nil {
		return
	}
	Logger.Info("download queue polled",
		"event", "queue_poll",
		"ready", ready,
		"preparing", preparing,
		"seen", seen)
}

// LogRateLimit logs a rate-limit backoff pause
func LogRateLimit(delay time.Duration) {
	if Logger == nil {
		return
	}
	Logger.Warn("rate limited, backing off",
		"event", "rate_limit",
		"delay", delay.String())
}

// LogReconcileSummary logs the final tally of a reconciliation run
func LogReconcileSummary(completed, failed, remaining int) {
	if Logger == nil {
		return
	}
	Logger.Info("reconciliation finished",
		"event", "reconcile_summary",
		"completed", completed,
		"failed", failed,
		"remaining", remaining)
}
