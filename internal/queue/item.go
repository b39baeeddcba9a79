// Package queue defines the content queue data model shared by the sheet
// store, the due-item selector and the publish orchestrator.
package queue

import "strings"

// Status is the publication state of a queue item.
//
// Internally this is a closed enum; the backing sheet stores the verbatim
// string literals (see ParseStatus/String). Items only ever move
// Pending -> Published or Pending -> Error, and are never reset by the core.
type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusPublished
	StatusError
)

// Sheet cell literals for Status. These are the exact values the content
// team uses in the spreadsheet, so they must not be "cleaned up".
const (
	statusPendingCell   = "Ожидает"
	statusPublishedCell = "Опубликовано"
	statusErrorCell     = "Ошибка"
)

// ParseStatus maps a sheet cell value to a Status.
// Unrecognized or empty values become StatusUnknown and are never dispatched.
func ParseStatus(cell string) Status {
	switch strings.TrimSpace(cell) {
	case statusPendingCell:
		return StatusPending
	case statusPublishedCell:
		return StatusPublished
	case statusErrorCell:
		return StatusError
	default:
		return StatusUnknown
	}
}

// String returns the sheet cell literal for the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return statusPendingCell
	case StatusPublished:
		return statusPublishedCell
	case StatusError:
		return statusErrorCell
	default:
		return ""
	}
}

// Item is one row of the content queue.
//
// Date and Time are free-form strings as entered in the sheet; parsing
// tolerance lives in the schedule package, not here. Media has already been
// split and blank-filtered at the store boundary.
type Item struct {
	// RowIndex is the 1-based physical sheet row (header row included).
	// It is assigned by the store on read and targets later status updates.
	RowIndex int

	Date string
	Time string
	Body string

	Media []string

	Status Status

	// PromptRU/PromptEN are opaque authoring fields carried through unchanged.
	PromptRU string
	PromptEN string
}

// SplitMedia splits the comma-joined media cell into an ordered list of URLs,
// dropping blank and whitespace-only entries.
func SplitMedia(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		urls = append(urls, p)
	}
	if len(urls) == 0 {
		return nil
	}
	return urls
}

// JoinMedia is the inverse of SplitMedia (wire representation for Append).
func JoinMedia(urls []string) string {
	return strings.Join(urls, ", ")
}

// FromRow builds an Item from a raw sheet row.
// Short rows are tolerated: missing trailing cells read as empty strings.
func FromRow(rowIndex int, row []string) Item {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return Item{
		RowIndex: rowIndex,
		Date:     cell(0),
		Time:     cell(1),
		Body:     cell(2),
		Media:    SplitMedia(cell(3)),
		Status:   ParseStatus(cell(4)),
		PromptRU: cell(5),
		PromptEN: cell(6),
	}
}

// ToRow renders the item as a sheet row in column order
// (Date, Time, Text, Image URLs, Status, PromptRU, PromptEN).
func (it Item) ToRow() []string {
	return []string{
		it.Date,
		it.Time,
		it.Body,
		JoinMedia(it.Media),
		it.Status.String(),
		it.PromptRU,
		it.PromptEN,
	}
}
