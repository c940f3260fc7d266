// Package source fetches the upstream dataset token and CSV resources over
// HTTP.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JonMunkholm/sdemirror/internal/sde"
)

// Options configures a Client.
type Options struct {
	Timeout   time.Duration // per request, 0 for none
	UserAgent string
}

// Client implements sde.Fetcher with resty.
type Client struct {
	http *resty.Client
}

var _ sde.Fetcher = (*Client)(nil)

// NewClient returns a client. Requests are never retried.
func NewClient(opts Options) *Client {
	client := resty.New()
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		client.SetHeader("user-agent", opts.UserAgent)
	}
	client.SetRetryCount(0)
	return &Client{http: client}
}

// FetchToken returns the dataset version token published at url: the first
// whitespace separated field of the body, so checksum files in the
// "<sum>  <file>" layout work as well as bare tokens.
func (c *Client) FetchToken(ctx context.Context, url string) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return "", &sde.NetworkError{URL: url, Err: err}
	}
	if res.IsError() {
		return "", &sde.NetworkError{URL: url, Status: res.StatusCode()}
	}

	fields := strings.Fields(res.String())
	if len(fields) == 0 {
		return "", &sde.NetworkError{URL: url, Err: errors.New("empty version token")}
	}
	return fields[0], nil
}

// FetchCSV downloads and parses the CSV at url. Every record is returned,
// header included. Records of a different width than the first one are a
// SchemaError.
func (c *Client) FetchCSV(ctx context.Context, url string) ([][]string, error) {
	start := time.Now()

	res, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, &sde.NetworkError{URL: url, Err: err}
	}
	body := res.RawBody()
	defer body.Close()

	if res.IsError() {
		_, _ = io.Copy(io.Discard, body)
		return nil, &sde.NetworkError{URL: url, Status: res.StatusCode()}
	}

	decoded, counter := decodeBody(body)
	records, err := readCSV(url, decoded)
	if err != nil {
		return nil, err
	}

	slog.Debug("fetched csv",
		"url", url,
		"bytes", counter.n,
		"records", len(records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return records, nil
}

// readCSV parses r, distinguishing transport failures mid-body from
// malformed content.
func readCSV(url string, r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				if errors.Is(err, csv.ErrFieldCount) {
					return nil, &sde.SchemaError{
						Source: url,
						Line:   parseErr.Line,
						Err:    fmt.Errorf("%w: expected %d columns, got %d", sde.ErrColumnCount, len(records[0]), len(rec)),
					}
				}
				return nil, &sde.SchemaError{Source: url, Line: parseErr.Line, Err: parseErr.Err}
			}
			return nil, &sde.NetworkError{URL: url, Err: fmt.Errorf("read body: %w", err)}
		}
		records = append(records, rec)
	}
}
