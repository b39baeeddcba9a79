package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "autopost/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteJournal struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Journal, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	j := &sqliteJournal{db: db, log: log}
	if err := j.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *sqliteJournal) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx, string(b))
	return err
}

func (j *sqliteJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *sqliteJournal) AppendPublish(ctx context.Context, rec PublishRecord) error {
	if j == nil || j.db == nil {
		return ErrDisabled
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO publish_log(at, row_index, encoding, ok, err, took_ms) VALUES(?,?,?,?,?,?)`,
		rec.At.Format(time.RFC3339Nano), rec.RowIndex, rec.Encoding, boolInt(rec.OK), nullStr(rec.Error), rec.TookMS,
	)
	return err
}

func (j *sqliteJournal) RecentPublishes(ctx context.Context, limit int) ([]PublishRecord, error) {
	if j == nil || j.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT at, row_index, encoding, ok, err, took_ms FROM publish_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PublishRecord
	for rows.Next() {
		var (
			rec PublishRecord
			at  string
			ok  int
			e   sql.NullString
		)
		if err := rows.Scan(&at, &rec.RowIndex, &rec.Encoding, &ok, &e, &rec.TookMS); err != nil {
			return nil, err
		}
		rec.At, _ = time.Parse(time.RFC3339Nano, at)
		rec.OK = ok != 0
		rec.Error = e.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
