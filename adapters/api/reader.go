package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

// Page is the result of a full fetch: the column names in order of first
// appearance and every record as header/cell pairs
type Page struct {
	Headers []string
	Rows    []map[string]string
}

// Reader fetches survey records from a REST endpoint
type Reader struct {
	config     SourceConfig
	httpClient *http.Client
}

// NewReader creates a new API reader for a data source
func NewReader(config SourceConfig) *Reader {
	return &Reader{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Fetch retrieves every page of the configured endpoint
func (r *Reader) Fetch(ctx context.Context) (*Page, error) {
	out := &Page{}
	seen := make(map[string]bool)
	cursor := ""

	maxPages := r.config.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	for page := 0; page < maxPages; page++ {
		body, err := r.get(ctx, r.buildURL(cursor, page))
		if err != nil {
			return nil, err
		}

		n, err := r.parseRecords(body, out, seen)
		if err != nil {
			return nil, err
		}

		if !r.hasMorePages(n) {
			break
		}
		if r.config.PaginationType == "cursor" {
			cursor = extractNextCursor(body)
			if cursor == "" {
				break
			}
		}
	}
	return out, nil
}

func (r *Reader) get(ctx context.Context, u string) ([]byte, error) {
	req, err := r.buildRequest(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d after %s: %s", resp.StatusCode, time.Since(start).Round(time.Millisecond), string(body))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response from %s is not valid JSON", u)
	}
	return body, nil
}

// buildURL constructs the request URL with pagination parameters
func (r *Reader) buildURL(cursor string, page int) string {
	base, err := url.Parse(r.config.BaseURL)
	if err != nil {
		return r.config.BaseURL
	}
	params := base.Query()
	for k, v := range r.config.QueryParams {
		params.Set(k, v)
	}

	switch r.config.PaginationType {
	case "offset":
		params.Set("offset", fmt.Sprint(page*r.config.PageSize))
		params.Set("limit", fmt.Sprint(r.config.PageSize))
	case "page":
		params.Set("page", fmt.Sprint(page+1))
		params.Set("per_page", fmt.Sprint(r.config.PageSize))
	case "cursor":
		if cursor != "" {
			params.Set("cursor", cursor)
		}
	}

	base.RawQuery = params.Encode()
	return base.String()
}

// buildRequest creates an HTTP request with authentication
func (r *Reader) buildRequest(ctx context.Context, u string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range r.config.Headers {
		req.Header.Set(k, v)
	}

	switch r.config.AuthMethod {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+r.config.AuthToken)
	case "api_key":
		req.Header.Set("X-API-Key", r.config.AuthToken)
	}
	return req, nil
}

// parseRecords appends the records found at the data path to out and
// returns how many the page held
func (r *Reader) parseRecords(body []byte, out *Page, seen map[string]bool) (int, error) {
	data := gjson.ParseBytes(body)
	if r.config.DataPath != "" {
		data = gjson.GetBytes(body, r.config.DataPath)
		if !data.Exists() {
			return 0, fmt.Errorf("data path '%s' not found in response", r.config.DataPath)
		}
	}

	var records []gjson.Result
	switch {
	case data.IsArray():
		records = data.Array()
	case data.IsObject():
		records = []gjson.Result{data}
	default:
		return 0, fmt.Errorf("data path '%s' is not an array or object", r.config.DataPath)
	}

	for i, rec := range records {
		if !rec.IsObject() {
			return 0, fmt.Errorf("record %d is not an object", len(out.Rows)+i+1)
		}
		row := make(map[string]string)
		rec.ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if !seen[name] {
				seen[name] = true
				out.Headers = append(out.Headers, name)
			}
			row[name] = cell(value)
			return true
		})
		out.Rows = append(out.Rows, row)
	}
	return len(records), nil
}

// cell renders a JSON value the way it would appear in a CSV export.
// Numbers keep their literal text so decimals survive unchanged.
func cell(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.Number:
		return v.Raw
	default:
		return v.String()
	}
}

// hasMorePages determines if there are more pages to fetch
func (r *Reader) hasMorePages(fetched int) bool {
	switch r.config.PaginationType {
	case "", "none":
		return false
	case "cursor":
		return fetched > 0
	}
	return fetched >= r.config.PageSize
}

// extractNextCursor extracts cursor for next page
func extractNextCursor(body []byte) string {
	// Common cursor field names
	cursorFields := []string{"next_cursor", "cursor", "next", "continuation_token"}

	for _, field := range cursorFields {
		if cursor := gjson.GetBytes(body, field); cursor.Exists() && cursor.String() != "" {
			return cursor.String()
		}
	}
	return ""
}
