package telegram

import (
	"strings"
	"unicode/utf8"
)

// The sheet body may embed a small hand-authored HTML subset:
// <b>/<i>/<u>, <br> variants, <div>/<p> containers, <ul>/<ol>/<li> lists.
// Each delivery encoding maps that subset to the dialect Telegram accepts
// for its parse mode.

var brVariants = []string{"<br>", "<br/>", "<br />"}

// inlineTags are the emphasis tags Telegram's HTML mode supports and that
// authors routinely leave unbalanced.
var inlineTags = []string{"b", "i", "u"}

// ToMarkdown converts the HTML subset to Telegram Markdown. Used by the
// plain (no media) and gallery encodings.
func ToMarkdown(text string) string {
	r := strings.NewReplacer(
		"<b>", "**", "</b>", "**",
		"<i>", "*", "</i>", "*",
		"<u>", "__", "</u>", "__",
		"<br>", "\n", "<br/>", "\n", "<br />", "\n",
		"<div>", "", "</div>", "",
		"<p>", "", "</p>", "",
	)
	return r.Replace(text)
}

// PrepareHTML normalizes the body for the single-media (HTML parse mode)
// encoding: line breaks become literal newlines, unsupported container tags
// are stripped, list items become bullets, and unbalanced emphasis tags are
// repaired so the API does not reject the whole message over a cosmetic
// authoring defect.
func PrepareHTML(text string) string {
	for _, br := range brVariants {
		text = strings.ReplaceAll(text, br, "\n")
	}
	r := strings.NewReplacer(
		"<div>", "", "</div>", "",
		"<p>", "", "</p>", "",
		"<ul>", "", "</ul>", "",
		"<ol>", "", "</ol>", "",
		"<li>", "• ", "</li>", "\n",
	)
	text = r.Replace(text)
	return RepairTags(text, inlineTags...)
}

// RepairTags balances open/close counts per inline tag: missing closers are
// appended at the end, excess closers are dropped starting from the end.
// Already-balanced text passes through unchanged, so the repair is idempotent.
func RepairTags(text string, tags ...string) string {
	for _, tag := range tags {
		open := "<" + tag + ">"
		close := "</" + tag + ">"

		opens := strings.Count(text, open)
		closes := strings.Count(text, close)

		switch {
		case opens > closes:
			text += strings.Repeat(close, opens-closes)
		case closes > opens:
			for i := 0; i < closes-opens; i++ {
				idx := strings.LastIndex(text, close)
				if idx < 0 {
					break
				}
				text = text[:idx] + text[idx+len(close):]
			}
		}
	}
	return text
}

// TruncRunes returns s truncated to at most n runes.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// SplitRunes splits s at the rune boundary n runes in, returning the head
// and the remainder ("" when s fits).
func SplitRunes(s string, n int) (head, rest string) {
	if n <= 0 {
		return "", s
	}
	if utf8.RuneCountInString(s) <= n {
		return s, ""
	}
	head = TruncRunes(s, n)
	return head, s[len(head):]
}
