package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"

// Client talks to the tabular store. Every call is a bounded synchronous
// request with a single retry on transient failure.
type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
}

func NewClient(tokens TokenSource) *Client {
	return &Client{
		base:   defaultBaseURL,
		http:   &http.Client{Timeout: 15 * time.Second},
		tokens: tokens,
	}
}

// WithBaseURL points the client at a different endpoint, used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.base = base
	return c
}

// GetRange reads a rectangular range ("Citizens!A3:J") and returns its
// rows. Short rows are returned as-is; callers index defensively.
func (c *Client) GetRange(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	u := fmt.Sprintf("%s/%s/values/%s", c.base, spreadsheetID, url.PathEscape(rng))
	var body struct {
		Values [][]string `json:"values"`
	}
	if err := c.do(ctx, http.MethodGet, u, nil, &body); err != nil {
		return nil, err
	}
	return body.Values, nil
}

// UpdateCells overwrites a range with the given values.
func (c *Client) UpdateCells(ctx context.Context, spreadsheetID, rng string, values [][]string) error {
	u := fmt.Sprintf("%s/%s/values/%s?valueInputOption=USER_ENTERED", c.base, spreadsheetID, url.PathEscape(rng))
	payload := map[string]any{"values": values}
	return c.do(ctx, http.MethodPut, u, payload, nil)
}

// UpdateCell overwrites a single cell.
func (c *Client) UpdateCell(ctx context.Context, spreadsheetID, rng, value string) error {
	return c.UpdateCells(ctx, spreadsheetID, rng, [][]string{{value}})
}

// AppendRow appends one row after the last populated row of the range.
func (c *Client) AppendRow(ctx context.Context, spreadsheetID, rng string, row []string) error {
	u := fmt.Sprintf("%s/%s/values/%s:append?valueInputOption=USER_ENTERED", c.base, spreadsheetID, url.PathEscape(rng))
	payload := map[string]any{"values": [][]string{row}}
	return c.do(ctx, http.MethodPost, u, payload, nil)
}

// do performs one authorized call, retrying once on network errors and
// 5xx responses.
func (c *Client) do(ctx context.Context, method, u string, payload, out any) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}
		retryable, err := c.once(ctx, method, u, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, u string, payload, out any) (retryable bool, err error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return false, fmt.Errorf("obtain bearer token: %w", err)
	}

	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return false, err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return true, fmt.Errorf("store call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return true, fmt.Errorf("store call %s: status %d", method, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("store call %s: status %d", method, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("store call %s: decode response: %w", method, err)
		}
	}
	return false, nil
}
