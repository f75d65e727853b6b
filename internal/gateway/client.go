// Package gateway is the request layer between the viewer and the log backend.
package gateway

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"proxylog/internal/api"
	"proxylog/internal/model"
	"proxylog/internal/version"
)

// maxErrorBody bounds how much of a failed response is kept as the message.
const maxErrorBody = 4 << 10

// Client talks to one backend. Every call is cancellable through its context.
type Client struct {
	BaseURL *url.URL
	HTTP    *http.Client
}

// NewClient constructs a backend client. timeout applies per request; 0 means
// no client-side limit beyond the context.
func NewClient(base string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url %q must include scheme and host", base)
	}
	return &Client{BaseURL: u, HTTP: &http.Client{Timeout: timeout}}, nil
}

// Index fetches the summary index for filter.
func (c *Client) Index(ctx context.Context, filter string) (model.IndexSnapshot, error) {
	var out api.IndexResponse
	q := url.Values{api.ParamFilter: {filter}}
	if err := c.getJSON(ctx, "index", api.PathIndex, q, &out); err != nil {
		return model.IndexSnapshot{}, err
	}
	if out.Entries == nil {
		out.Entries = []model.IndexEntry{}
	}
	return out, nil
}

// Content fetches rendered content for offsets [from, to) under filter.
func (c *Client) Content(ctx context.Context, from, to int, filter string) ([]model.ContentEntry, error) {
	var out api.ContentResponse
	q := url.Values{
		api.ParamFilter:     {filter},
		api.ParamFromOffset: {strconv.Itoa(from)},
		api.ParamToOffset:   {strconv.Itoa(to)},
	}
	if err := c.getJSON(ctx, "content", api.PathContent, q, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// TestFilter evaluates a candidate filter without changing any state.
func (c *Client) TestFilter(ctx context.Context, filter string) (api.TestFilterResponse, error) {
	var out api.TestFilterResponse
	q := url.Values{api.ParamFilter: {filter}}
	err := c.getJSON(ctx, "testFilter", api.PathTestFilter, q, &out)
	return out, err
}

// Search returns the index entries under filter that match search.
func (c *Client) Search(ctx context.Context, filter, search string) (model.SearchResult, error) {
	var out api.SearchResponse
	q := url.Values{api.ParamFilter: {filter}, api.ParamSearch: {search}}
	err := c.getJSON(ctx, "search", api.PathSearch, q, &out)
	return out, err
}

// Export streams the gzip-compressed NDJSON log for filter into w and
// returns the number of compressed bytes written.
func (c *Client) Export(ctx context.Context, filter string, w io.Writer) (int64, error) {
	q := url.Values{api.ParamFilter: {filter}}
	resp, err := c.do(ctx, "export", http.MethodGet, api.PathExport, q, nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, c.transportErr(ctx, "export", err)
	}
	return n, nil
}

// Import uploads an NDJSON log. Input that is already gzip-compressed is sent
// as is; plain input is compressed on the fly.
func (c *Client) Import(ctx context.Context, r io.Reader) (int, error) {
	br := bufio.NewReader(r)
	var body io.Reader = br
	if magic, _ := br.Peek(2); len(magic) < 2 || magic[0] != 0x1f || magic[1] != 0x8b {
		pr, pw := io.Pipe()
		go func() {
			zw := gzip.NewWriter(pw)
			_, err := io.Copy(zw, br)
			if cerr := zw.Close(); err == nil {
				err = cerr
			}
			pw.CloseWithError(err)
		}()
		defer pr.Close()
		body = pr
	}
	resp, err := c.do(ctx, "import", http.MethodPost, api.PathImport, nil, body, "gzip")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var out api.ImportResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, &StatusError{Op: "import", Code: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return out.Imported, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, out any) error {
	resp, err := c.do(ctx, op, http.MethodGet, path, q, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return c.transportErr(ctx, op, err)
		}
		return &StatusError{Op: op, Code: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return nil
}

// do issues the request and converts non-2xx responses into *StatusError.
// The caller owns the body of a successful response.
func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, body io.Reader, encoding string) (*http.Response, error) {
	u := *c.BaseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-ndjson")
	}
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, c.transportErr(ctx, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	return resp, nil
}

func (c *Client) transportErr(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", op, ErrCanceled)
	}
	return &StatusError{Op: op, Code: 0, Message: err.Error()}
}

func readErrorMessage(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var er api.ErrorResponse
	if json.Unmarshal(b, &er) == nil && er.Error != "" {
		return er.Error
	}
	return strings.TrimSpace(string(b))
}
