package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "autopost/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	j, err := Open(Config{Driver: "none"}, logx.Nop())
	if err != nil || j != nil {
		t.Fatalf("disabled journal should be (nil, nil), got (%v, %v)", j, err)
	}
}

func TestPublishLogRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	ctx := context.Background()
	recs := []PublishRecord{
		{RowIndex: 2, Encoding: "plain", OK: true, TookMS: 120},
		{RowIndex: 3, Encoding: "single-media", OK: false, Error: "telegram send failed", TookMS: 340},
	}
	for _, r := range recs {
		if err := j.AppendPublish(ctx, r); err != nil {
			t.Fatalf("AppendPublish: %v", err)
		}
	}

	got, err := j.RecentPublishes(ctx, 10)
	if err != nil {
		t.Fatalf("RecentPublishes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	// Newest first.
	if got[0].RowIndex != 3 || got[0].OK || got[0].Error == "" {
		t.Fatalf("unexpected newest record: %+v", got[0])
	}
	if got[1].RowIndex != 2 || !got[1].OK {
		t.Fatalf("unexpected oldest record: %+v", got[1])
	}
	if got[0].At.IsZero() {
		t.Fatal("timestamp not persisted")
	}
}
