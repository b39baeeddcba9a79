// Package schedule decides which queued items are due for publication.
//
// The selector is a pure function of (item, now): no I/O, no clock reads.
// All comparisons happen in one fixed reference zone; the sheet's wall-clock
// values are taken as already being in that zone.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"autopost/internal/queue"
)

// layouts is the ordered list of accepted "{date} {time}" forms.
// The first layout that parses wins. Tolerance lives entirely here; the
// sheet values are never normalized at write time. The non-padded tokens
// accept both "05.10.2025" and the hand-entered "5.10.2025".
var layouts = []string{
	"2.1.2006 15:04",
	"2.1.06 15:04",
	"2006-1-2 15:04",
	"2006-1-2 15:04:05",
}

// Selector evaluates item eligibility against a reference time zone.
//
// Lookback bounds how far in the past a scheduled moment may be and still
// publish: 0 means unbounded (a stale item publishes whenever the poller
// resumes), >0 means items older than the window are skipped forever.
type Selector struct {
	Location *time.Location
	Lookback time.Duration
}

// Decision is the outcome of evaluating one item.
type Decision struct {
	Eligible bool

	// Delta is now - scheduled, in minutes (fractional). Only meaningful
	// when the scheduled moment parsed.
	Delta float64

	// When is the parsed scheduled moment in the reference zone.
	When time.Time

	// ParseErr is set when the date/time strings could not be interpreted.
	// The item is not eligible and stays pending until manually corrected.
	ParseErr error
}

// ParseWhen parses the item's date+time strings in the reference zone.
func (s Selector) ParseWhen(item queue.Item) (time.Time, error) {
	date := strings.TrimSpace(item.Date)
	tm := strings.TrimSpace(item.Time)
	if date == "" || tm == "" {
		return time.Time{}, fmt.Errorf("row %d: missing date or time", item.RowIndex)
	}

	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}

	raw := date + " " + tm
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("row %d: unparseable schedule %q", item.RowIndex, raw)
}

// Eligible decides whether the item is due at the given instant.
//
// Rules:
//   - missing or unparseable date/time: not eligible (ParseErr set)
//   - scheduled strictly in the future (delta < 0): not eligible
//   - otherwise eligible, unless Lookback > 0 and the item is older
//     than the window
func (s Selector) Eligible(item queue.Item, now time.Time) Decision {
	when, err := s.ParseWhen(item)
	if err != nil {
		return Decision{ParseErr: err}
	}

	delta := now.Sub(when).Minutes()
	d := Decision{Delta: delta, When: when}
	if delta < 0 {
		return d
	}
	if s.Lookback > 0 && delta > s.Lookback.Minutes() {
		return d
	}
	d.Eligible = true
	return d
}
