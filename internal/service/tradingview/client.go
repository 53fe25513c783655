// Package tradingview executes screener queries against the TradingView
// scan endpoint.
package tradingview

import (
	"context"
	"fmt"
	"time"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
	drepo "github.com/jam2205/TradingView-Screener/internal/domain/repository"
	apphttp "github.com/jam2205/TradingView-Screener/pkg/http"
	applogger "github.com/jam2205/TradingView-Screener/pkg/logger"
)

const (
	defaultBaseURL   = "https://scanner.tradingview.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
)

// Client implements a QueryExecutor backed by the TradingView scanner API.
type Client struct {
	baseURL   string
	userAgent string
	cookie    string
	http      *apphttp.Client
	logger    *applogger.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the scanner endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithCookie attaches a TradingView session cookie so scans return
// real-time rather than delayed data.
func WithCookie(cookie string) Option {
	return func(c *Client) { c.cookie = cookie }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = apphttp.NewClient(apphttp.WithTimeout(d)) }
}

// New creates a scanner client.
func New(logger *applogger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		http:      apphttp.NewClient(apphttp.WithTimeout(20 * time.Second)),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// scanRequest is the wire form of a screener query.
type scanRequest struct {
	Markets []string     `json:"markets,omitempty"`
	Symbols *scanSymbols `json:"symbols,omitempty"`
	Columns []string     `json:"columns"`
	Filter  []scanFilter `json:"filter,omitempty"`
	Sort    *scanSort    `json:"sort,omitempty"`
	Range   []int        `json:"range,omitempty"`
}

type scanSymbols struct {
	Query   map[string][]string `json:"query"`
	Tickers []string            `json:"tickers,omitempty"`
}

type scanFilter struct {
	Left      string `json:"left"`
	Operation string `json:"operation"`
	Right     any    `json:"right,omitempty"`
}

type scanSort struct {
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
}

type scanResponse struct {
	TotalCount int       `json:"totalCount"`
	Data       []scanRow `json:"data"`
}

type scanRow struct {
	Symbol string `json:"s"`
	Values []any  `json:"d"`
}

// Execute runs the query and shapes the response into a Snapshot. The first
// snapshot column is always "ticker" (the exchange-qualified symbol),
// followed by the requested columns in order.
func (c *Client) Execute(ctx context.Context, q *models.Query) (*models.Snapshot, error) {
	if len(q.Columns) == 0 {
		return nil, fmt.Errorf("query has no columns")
	}

	market := q.Market
	if market == "" {
		market = "america"
	}

	req := &scanRequest{
		Columns: q.Columns,
		Symbols: &scanSymbols{Query: map[string][]string{"types": {}}},
	}
	if len(q.Tickers) > 0 {
		req.Symbols.Tickers = q.Tickers
	} else {
		req.Markets = []string{market}
	}
	for _, f := range q.Filters {
		req.Filter = append(req.Filter, scanFilter{Left: f.Field, Operation: f.Operation, Right: f.Value})
	}
	if q.Sort != nil {
		order := "desc"
		if q.Sort.Ascending {
			order = "asc"
		}
		req.Sort = &scanSort{SortBy: q.Sort.By, SortOrder: order}
	}
	if q.Limit > 0 {
		req.Range = []int{q.Offset, q.Offset + q.Limit}
	}

	headers := map[string]string{
		"User-Agent": c.userAgent,
		"Accept":     "application/json",
	}
	if c.cookie != "" {
		headers["Cookie"] = c.cookie
	}

	var resp scanResponse
	start := time.Now()
	err := c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method:  apphttp.MethodPost,
		URL:     fmt.Sprintf("%s/%s/scan", c.baseURL, market),
		Headers: headers,
		Body:    req,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", market, err)
	}

	snap := &models.Snapshot{
		CollectedAt: time.Now().UTC(),
		TotalCount:  resp.TotalCount,
		Columns:     append([]string{"ticker"}, q.Columns...),
		Rows:        make([][]any, 0, len(resp.Data)),
	}
	width := len(snap.Columns)
	for _, row := range resp.Data {
		cells := make([]any, 0, width)
		cells = append(cells, row.Symbol)
		cells = append(cells, row.Values...)
		// The API can return fewer d values than requested columns;
		// pad so every row spans the header.
		for len(cells) < width {
			cells = append(cells, nil)
		}
		snap.Rows = append(snap.Rows, cells)
	}

	c.logger.Debug("scan complete",
		applogger.String("market", market),
		applogger.Int("rows", snap.NumRows()),
		applogger.Int("total", resp.TotalCount),
		applogger.Duration("elapsed", time.Since(start)),
	)
	return snap, nil
}

var _ drepo.QueryExecutor = (*Client)(nil)
