package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestToMarkdown(t *testing.T) {
	t.Parallel()
	in := "<b>Жирный</b> <i>Курсив</i> <u>Подчеркнутый</u><br>next<div>line</div>"
	want := "**Жирный** *Курсив* __Подчеркнутый__\nnextline"
	if got := ToMarkdown(in); got != want {
		t.Fatalf("ToMarkdown = %q, want %q", got, want)
	}
}

func TestPrepareHTMLLists(t *testing.T) {
	t.Parallel()
	in := "<p>intro</p><ul><li>one</li><li>two</li></ul><br/>done"
	want := "intro• one\n• two\n\ndone"
	if got := PrepareHTML(in); got != want {
		t.Fatalf("PrepareHTML = %q, want %q", got, want)
	}
}

func TestPrepareHTMLKeepsInlineTags(t *testing.T) {
	t.Parallel()
	in := "<b>bold</b> and <i>italic</i>"
	if got := PrepareHTML(in); got != in {
		t.Fatalf("balanced inline tags must pass through, got %q", got)
	}
}

func TestRepairTagsAppendsClosers(t *testing.T) {
	t.Parallel()
	in := "<b>one <b>two"
	got := RepairTags(in, "b")
	if got != "<b>one <b>two</b></b>" {
		t.Fatalf("RepairTags = %q", got)
	}
	if !strings.HasPrefix(got, in) {
		t.Fatal("repair must only append, not rewrite content")
	}
}

func TestRepairTagsDropsExcessClosers(t *testing.T) {
	t.Parallel()
	in := "<b>bold</b></b></b>"
	if got := RepairTags(in, "b"); got != "<b>bold</b>" {
		t.Fatalf("RepairTags = %q", got)
	}
}

func TestRepairTagsIdempotent(t *testing.T) {
	t.Parallel()
	cases := []string{
		"<b>Жирный</b> <i>Курсив</i> <u>Подчеркнутый</u>",
		"<b>Жирный <i>Курсив <u>Подчеркнутый",
		"<b>a</b></u>",
		"plain text, no tags",
	}
	for _, in := range cases {
		once := RepairTags(in, "b", "i", "u")
		twice := RepairTags(once, "b", "i", "u")
		if once != twice {
			t.Fatalf("repair not idempotent for %q: %q vs %q", in, once, twice)
		}
		for _, tag := range []string{"b", "i", "u"} {
			if strings.Count(once, "<"+tag+">") != strings.Count(once, "</"+tag+">") {
				t.Fatalf("tag %q unbalanced after repair: %q", tag, once)
			}
		}
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("я", 1500)
	got := TruncRunes(s, 1000)
	if utf8.RuneCountInString(got) != 1000 {
		t.Fatalf("TruncRunes kept %d runes", utf8.RuneCountInString(got))
	}
	if TruncRunes("short", 1000) != "short" {
		t.Fatal("short strings must pass through")
	}
	if TruncRunes("anything", 0) != "" {
		t.Fatal("zero budget must return empty")
	}
}

func TestSplitRunes(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("a", 5000)
	head, rest := SplitRunes(s, 1000)
	if len(head) != 1000 || len(rest) != 4000 {
		t.Fatalf("SplitRunes lengths = %d,%d", len(head), len(rest))
	}
	if head+rest != s {
		t.Fatal("split must not lose content")
	}
	head, rest = SplitRunes("fits", 1000)
	if head != "fits" || rest != "" {
		t.Fatalf("SplitRunes on short input = %q,%q", head, rest)
	}
}

func TestSplitTextChunks(t *testing.T) {
	t.Parallel()
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString("line of body text that repeats\n")
	}
	chunks := splitText(b.String(), 4000)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if utf8.RuneCountInString(ch) > 4000 {
			t.Fatalf("chunk %d over limit: %d runes", i, utf8.RuneCountInString(ch))
		}
		if ch == "" {
			t.Fatalf("chunk %d empty", i)
		}
	}
}

func TestSplitTextDropsAllNewlineWindows(t *testing.T) {
	t.Parallel()
	// Leading blank-line run longer than a whole window must not become an
	// empty chunk.
	chunks := splitText(strings.Repeat("\n", 4500)+"tail", 4000)
	for i, ch := range chunks {
		if ch == "" {
			t.Fatalf("chunk %d empty", i)
		}
	}
	if len(chunks) != 1 || chunks[0] != "tail" {
		t.Fatalf("chunks = %q, want only the tail", chunks)
	}
}
