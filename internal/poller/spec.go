// Package poller wakes the publish orchestrator on a schedule: either a
// fixed interval or a cron expression (which is how the "only poll during
// active hours" deployments are expressed, e.g. "*/2 8-22 * * *").
package poller

import (
	"fmt"
	"strings"
	"time"
)

// SpecKind is the normalized kind of a schedule string.
type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// ParsedSpec represents a parsed schedule string.
//
// Supported forms:
//   - Cron (crontab.guru-style): "*/2 8-22 * * *", "@hourly", "@every 10m"
//   - Interval duration: "2m", "1h30m"
//
// Optional prefixes "cron:" and "every:" force one interpretation.
type ParsedSpec struct {
	Kind  SpecKind
	Cron  string
	Every time.Duration
}

// ParseSchedule parses a schedule string.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	if strings.HasPrefix(low, "cron:") {
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return ParsedSpec{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return ParsedSpec{Kind: SpecCron, Cron: expr}, nil
	}
	if strings.HasPrefix(low, "every:") {
		d, err := parseInterval(strings.TrimSpace(s[len("every:"):]))
		if err != nil {
			return ParsedSpec{}, err
		}
		return ParsedSpec{Kind: SpecInterval, Every: d}, nil
	}

	// Heuristic: any whitespace or a leading '@' means cron.
	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		return ParsedSpec{Kind: SpecCron, Cron: s}, nil
	}

	d, err := parseInterval(s)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf(
			"invalid schedule %q (use cron like '*/2 8-22 * * *' or a duration like '2m')", raw)
	}
	return ParsedSpec{Kind: SpecInterval, Every: d}, nil
}

func parseInterval(v string) (time.Duration, error) {
	if v == "" {
		return 0, fmt.Errorf("interval required")
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}
