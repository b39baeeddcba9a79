package queue

import (
	"reflect"
	"testing"
)

func TestParseStatusRoundTrip(t *testing.T) {
	t.Parallel()
	for _, st := range []Status{StatusPending, StatusPublished, StatusError} {
		if got := ParseStatus(st.String()); got != st {
			t.Fatalf("ParseStatus(%q) = %v, want %v", st.String(), got, st)
		}
	}
	if got := ParseStatus("published"); got != StatusUnknown {
		t.Fatalf("unexpected status for foreign literal: %v", got)
	}
	if got := ParseStatus("  Ожидает  "); got != StatusPending {
		t.Fatalf("expected pending for padded cell, got %v", got)
	}
}

func TestSplitMedia(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cell string
		want []string
	}{
		{name: "empty", cell: "", want: nil},
		{name: "whitespace only", cell: "   ", want: nil},
		{name: "single", cell: "https://x/1.jpg", want: []string{"https://x/1.jpg"}},
		{name: "multi with spaces", cell: "https://x/1.jpg , https://x/2.jpg", want: []string{"https://x/1.jpg", "https://x/2.jpg"}},
		{name: "blank entries dropped", cell: ",, https://x/1.jpg ,,", want: []string{"https://x/1.jpg"}},
		{name: "only blanks", cell: " , , ", want: nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := SplitMedia(tt.cell)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("SplitMedia(%q) = %v, want %v", tt.cell, got, tt.want)
			}
		})
	}
}

func TestFromRowShortRow(t *testing.T) {
	t.Parallel()
	it := FromRow(5, []string{"20.09.2025", "12:00"})
	if it.RowIndex != 5 {
		t.Fatalf("RowIndex = %d, want 5", it.RowIndex)
	}
	if it.Body != "" || it.Media != nil || it.PromptEN != "" {
		t.Fatalf("short row should read as empty trailing cells: %+v", it)
	}
	if it.Status != StatusUnknown {
		t.Fatalf("missing status cell should be unknown, got %v", it.Status)
	}
}

func TestFromRowFull(t *testing.T) {
	t.Parallel()
	it := FromRow(2, []string{"20.09.25", "08:30", "hello", "https://x/a.jpg, https://x/b.jpg", "Ожидает", "ру", "en"})
	if it.Status != StatusPending {
		t.Fatalf("Status = %v, want pending", it.Status)
	}
	if len(it.Media) != 2 {
		t.Fatalf("Media = %v, want 2 entries", it.Media)
	}
	row := it.ToRow()
	if row[3] != "https://x/a.jpg, https://x/b.jpg" || row[4] != "Ожидает" {
		t.Fatalf("unexpected row render: %v", row)
	}
}
