// Package storage keeps a local journal of dispatch attempts. The sheet
// remains the source of truth for item status; the journal only exists so an
// operator can answer "what did the poster actually do last night" without
// scrolling a Telegram chat.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "autopost/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the journal.
//
// Driver values:
//   - "" or "none": journaling disabled
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// PublishRecord is one dispatch attempt.
// Keep it compact and schema-stable.
type PublishRecord struct {
	At       time.Time
	RowIndex int
	Encoding string
	OK       bool
	Error    string
	TookMS   int64
}

// Journal is the persistence API used by the orchestrator.
type Journal interface {
	AppendPublish(ctx context.Context, rec PublishRecord) error
	RecentPublishes(ctx context.Context, limit int) ([]PublishRecord, error)
	Close() error
}

// Open initializes the configured journal.
// It returns (nil, nil) when journaling is disabled.
func Open(cfg Config, log logx.Logger) (Journal, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
