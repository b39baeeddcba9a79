package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	logx "autopost/pkg/logx"
)

// fakeAPI stands in for the Bot API server: it records every method call
// with its parameters and can be told to reject the next N calls of a
// method the way Telegram does (ok:false + description).
type fakeAPI struct {
	mu     sync.Mutex
	calls  []apiCall
	reject map[string]int
}

type apiCall struct {
	method string
	params map[string]string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	method := parts[len(parts)-1]

	params := map[string]string{}
	_ = json.NewDecoder(r.Body).Decode(&params)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, params: params})
	rejected := f.reject[method] > 0
	if rejected {
		f.reject[method]--
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case rejected:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: rejected"}`))
	case method == "sendMediaGroup":
		_, _ = w.Write([]byte(`{"ok":true,"result":[{"message_id":1,"chat":{"id":-100,"type":"channel"}}]}`))
	case method == "sendPhoto":
		// telebot dereferences result.photo after a sendPhoto, so the fake
		// must include it or the library panics.
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":-100,"type":"channel"},"photo":[{"file_id":"x","file_unique_id":"x","width":1,"height":1}]}}`))
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":-100,"type":"channel"}}}`))
	}
}

func (f *fakeAPI) recorded() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func testTelegramClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	c, err := New(Config{
		Token:      "123:test",
		ChannelID:  "@channel",
		RatePerSec: 100, // keep limiter waits out of test time
		BaseURL:    ts.URL,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestSendPlainConvertsMarkup(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	c := testTelegramClient(t, api)

	if err := c.SendPlain(context.Background(), "<b>Привет</b>"); err != nil {
		t.Fatalf("SendPlain: %v", err)
	}

	calls := api.recorded()
	if len(calls) != 1 || calls[0].method != "sendMessage" {
		t.Fatalf("calls = %+v, want one sendMessage", calls)
	}
	if got := calls[0].params["text"]; got != "**Привет**" {
		t.Fatalf("text = %q", got)
	}
	if got := calls[0].params["parse_mode"]; got != "Markdown" {
		t.Fatalf("parse_mode = %q", got)
	}
}

func TestSendSingleMediaEmbedsImage(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	c := testTelegramClient(t, api)

	if err := c.SendSingleMedia(context.Background(), "текст", "https://x/1.jpg"); err != nil {
		t.Fatalf("SendSingleMedia: %v", err)
	}

	calls := api.recorded()
	if len(calls) != 1 || calls[0].method != "sendMessage" {
		t.Fatalf("calls = %+v, want one sendMessage", calls)
	}
	text := calls[0].params["text"]
	if !strings.Contains(text, `href="https://x/1.jpg"`) || !strings.Contains(text, wordJoiner) {
		t.Fatalf("embedded link missing from %q", text)
	}
	if got := calls[0].params["parse_mode"]; got != "HTML" {
		t.Fatalf("parse_mode = %q", got)
	}
}

// Rejection of the embedded form triggers exactly one fallback: the image as
// a photo with a 1000-rune caption, then one follow-up with the remainder.
func TestSendSingleMediaFallbackChain(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{reject: map[string]int{"sendMessage": 1}}
	c := testTelegramClient(t, api)

	body := strings.Repeat("я", 1500)
	if err := c.SendSingleMedia(context.Background(), body, "https://x/1.jpg"); err != nil {
		t.Fatalf("SendSingleMedia: %v", err)
	}

	calls := api.recorded()
	methods := make([]string, 0, len(calls))
	for _, call := range calls {
		methods = append(methods, call.method)
	}
	want := []string{"sendMessage", "sendPhoto", "sendMessage"}
	if len(methods) != len(want) {
		t.Fatalf("methods = %v, want %v", methods, want)
	}
	for i := range want {
		if methods[i] != want[i] {
			t.Fatalf("methods = %v, want %v", methods, want)
		}
	}

	photo := calls[1].params
	if photo["photo"] != "https://x/1.jpg" {
		t.Fatalf("photo = %q", photo["photo"])
	}
	if got := utf8.RuneCountInString(photo["caption"]); got != captionLimit {
		t.Fatalf("caption runes = %d, want %d", got, captionLimit)
	}

	rest := calls[2].params["text"]
	if got := utf8.RuneCountInString(rest); got != 1500-captionLimit {
		t.Fatalf("remainder runes = %d, want %d", got, 1500-captionLimit)
	}
	if photo["caption"]+rest != body {
		t.Fatal("caption + remainder must reassemble the body")
	}
}

func TestSendSingleMediaShortBodyNoRemainder(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{reject: map[string]int{"sendMessage": 1}}
	c := testTelegramClient(t, api)

	if err := c.SendSingleMedia(context.Background(), "короткий текст", "https://x/1.jpg"); err != nil {
		t.Fatalf("SendSingleMedia: %v", err)
	}

	calls := api.recorded()
	if len(calls) != 2 || calls[1].method != "sendPhoto" {
		t.Fatalf("calls = %+v, want rejected sendMessage then sendPhoto only", calls)
	}
}

func TestSendGalleryCapsAndCaptionsFirstOnly(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	c := testTelegramClient(t, api)

	urls := make([]string, 12)
	for i := range urls {
		urls[i] = "https://x/" + string(rune('a'+i)) + ".jpg"
	}
	body := strings.Repeat("д", 1500)
	if err := c.SendGallery(context.Background(), body, urls); err != nil {
		t.Fatalf("SendGallery: %v", err)
	}

	calls := api.recorded()
	if len(calls) != 1 || calls[0].method != "sendMediaGroup" {
		t.Fatalf("calls = %+v, want one sendMediaGroup", calls)
	}

	var media []map[string]any
	if err := json.Unmarshal([]byte(calls[0].params["media"]), &media); err != nil {
		t.Fatalf("media payload: %v", err)
	}
	if len(media) != MaxGalleryItems {
		t.Fatalf("album size = %d, want %d", len(media), MaxGalleryItems)
	}

	caption, _ := media[0]["caption"].(string)
	if utf8.RuneCountInString(caption) != captionLimit {
		t.Fatalf("first-slot caption runes = %d, want %d", utf8.RuneCountInString(caption), captionLimit)
	}
	for i, m := range media[1:] {
		if extra, ok := m["caption"].(string); ok && extra != "" {
			t.Fatalf("slot %d carries a caption %q, only the first slot may", i+1, extra)
		}
	}
	for i, m := range media {
		if m["media"] != urls[i] {
			t.Fatalf("slot %d media = %v, want %q", i, m["media"], urls[i])
		}
	}
}

func TestSendNoticeUsesHTMLMode(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	c := testTelegramClient(t, api)

	if err := c.SendNotice(context.Background(), "-100500", "📢 сводка"); err != nil {
		t.Fatalf("SendNotice: %v", err)
	}

	calls := api.recorded()
	if len(calls) != 1 || calls[0].method != "sendMessage" {
		t.Fatalf("calls = %+v, want one sendMessage", calls)
	}
	if got := calls[0].params["parse_mode"]; got != "HTML" {
		t.Fatalf("parse_mode = %q", got)
	}
	if got := calls[0].params["chat_id"]; got != "-100500" {
		t.Fatalf("chat_id = %q", got)
	}
}
