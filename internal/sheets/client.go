// Package sheets adapts the Google Sheets REST API as the content queue
// store: a fixed 7-column tab where the header occupies row 1 and every data
// row is one queued post.
//
// There is deliberately no Google client library here; the surface needed is
// four values calls, made with net/http and a service-account JWT.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"autopost/internal/queue"
	logx "autopost/pkg/logx"
)

// ErrUnavailable reports that the store cannot be reached (missing
// credentials or transport/auth failure at construction). Callers must treat
// it as distinct from an empty sheet.
var ErrUnavailable = errors.New("sheet store unavailable")

// Header is the canonical column row (row 1).
var Header = []string{"Date", "Time", "Text", "Image URLs", "Status", "PromptRU", "PromptEN"}

// statusColumn is the sheet column letter holding Status.
const statusColumn = "E"

type Config struct {
	SpreadsheetID string
	SheetName     string
	Credentials   Credentials

	// BaseURL overrides the API endpoint (tests). Empty means production.
	BaseURL string
}

type Client struct {
	cfg    Config
	http   *http.Client
	tokens tokenSource
	log    logx.Logger

	// degraded is set when credentials were absent/invalid at construction.
	// Every call then fails with ErrUnavailable instead of pretending the
	// queue is empty.
	degraded    bool
	degradedWhy string
}

// New builds the client. Construction never fails: with unusable credentials
// the client comes up degraded and reports ErrUnavailable from every call.
func New(cfg Config, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://sheets.googleapis.com"
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Sheet1"
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 20 * time.Second},
		log:  log,
	}

	switch {
	case strings.TrimSpace(cfg.SpreadsheetID) == "":
		c.degraded = true
		c.degradedWhy = "spreadsheet id not configured"
	case !cfg.Credentials.complete():
		c.degraded = true
		c.degradedWhy = "service account credentials not configured"
	default:
		src, err := newJWTSource(cfg.Credentials, c.http)
		if err != nil {
			c.degraded = true
			c.degradedWhy = err.Error()
		} else {
			c.tokens = src
		}
	}
	if c.degraded {
		log.Warn("sheet store degraded", logx.String("reason", c.degradedWhy))
	}
	return c
}

// Degraded reports whether the store came up without a usable connection.
func (c *Client) Degraded() bool { return c.degraded }

func (c *Client) rangeRef(a1 string) string {
	return url.PathEscape("'" + c.cfg.SheetName + "'!" + a1)
}

func (c *Client) valuesURL(a1, suffix, query string) string {
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.SpreadsheetID), c.rangeRef(a1), suffix)
	if query != "" {
		u += "?" + query
	}
	return u
}

func (c *Client) do(ctx context.Context, method, u string, body any, out any) error {
	if c.degraded {
		return fmt.Errorf("%w: %s", ErrUnavailable, c.degradedWhy)
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sheets api: http=%d body=%s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

type valueRange struct {
	Values [][]string `json:"values"`
}

// ReadAll returns every data row (below the header) as items with their
// 1-based physical row indexes. Short rows read as empty trailing cells.
func (c *Client) ReadAll(ctx context.Context) ([]queue.Item, error) {
	var vr valueRange
	if err := c.do(ctx, http.MethodGet, c.valuesURL("A:G", "", ""), nil, &vr); err != nil {
		return nil, err
	}
	if len(vr.Values) <= 1 {
		return nil, nil
	}
	items := make([]queue.Item, 0, len(vr.Values)-1)
	for i, row := range vr.Values[1:] {
		// +2: rows are 1-based and row 1 is the header.
		items = append(items, queue.FromRow(i+2, row))
	}
	return items, nil
}

// ReadPending returns the rows whose status cell is the pending literal.
func (c *Client) ReadPending(ctx context.Context) ([]queue.Item, error) {
	all, err := c.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	var pending []queue.Item
	for _, it := range all {
		if it.Status == queue.StatusPending {
			pending = append(pending, it)
		}
	}
	c.log.Debug("pending rows read", logx.Int("total", len(all)), logx.Int("pending", len(pending)))
	return pending, nil
}

// UpdateStatus writes a single status cell at the given physical row.
func (c *Client) UpdateStatus(ctx context.Context, rowIndex int, st queue.Status) error {
	if rowIndex < 2 {
		return fmt.Errorf("row index %d targets the header or is invalid", rowIndex)
	}
	a1 := fmt.Sprintf("%s%d", statusColumn, rowIndex)
	body := valueRange{Values: [][]string{{st.String()}}}
	return c.do(ctx, http.MethodPut, c.valuesURL(a1, "", "valueInputOption=RAW"), body, nil)
}

// Append adds one row at the bottom of the sheet.
func (c *Client) Append(ctx context.Context, item queue.Item) error {
	body := valueRange{Values: [][]string{item.ToRow()}}
	q := "valueInputOption=RAW&insertDataOption=INSERT_ROWS"
	return c.do(ctx, http.MethodPost, c.valuesURL("A:G", ":append", q), body, nil)
}

// SetupHeaders (re)writes the canonical header row.
func (c *Client) SetupHeaders(ctx context.Context) error {
	body := valueRange{Values: [][]string{Header}}
	return c.do(ctx, http.MethodPut, c.valuesURL("A1:G1", "", "valueInputOption=RAW"), body, nil)
}

// Clear wipes all data rows, leaving the header. Maintenance only; the
// publish cycle never deletes rows.
func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.valuesURL("A2:G", ":clear", ""), nil, nil)
}
