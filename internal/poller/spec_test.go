package poller

import (
	"testing"
	"time"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		raw   string
		kind  SpecKind
		every time.Duration
	}{
		{name: "cron", raw: "*/2 8-22 * * *", kind: SpecCron},
		{name: "cron descriptor", raw: "@hourly", kind: SpecCron},
		{name: "prefixed cron", raw: "cron:0 12 * * *", kind: SpecCron},
		{name: "duration", raw: "2m", kind: SpecInterval, every: 2 * time.Minute},
		{name: "prefixed interval", raw: "every:90s", kind: SpecInterval, every: 90 * time.Second},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if tt.kind == SpecInterval && got.Every != tt.every {
				t.Fatalf("Every = %v, want %v", got.Every, tt.every)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "-5m", "every:"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
