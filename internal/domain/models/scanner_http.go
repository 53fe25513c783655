package models

// Requests for the scanner HTTP endpoints. Defined in domain for consistency and reuse.

type ScanRequest struct {
	Symbols   []string `json:"symbols" validate:"required,min=1,dive,required"`
	Timeframe string   `json:"timeframe" default:"daily"`
	Columns   []string `json:"columns,omitempty"`
}

type MarketScanRequest struct {
	Market  string   `json:"market" validate:"required"`
	Columns []string `json:"columns" validate:"required,min=1"`
	Filters []Filter `json:"filters,omitempty"`
	SortBy  string   `json:"sort_by,omitempty"`
	Limit   int      `json:"limit" default:"100" validate:"gte=1,lte=5000"`
}

type CollectRequest struct {
	Dataset string   `json:"dataset" validate:"required"`
	Market  string   `json:"market" default:"america"`
	Columns []string `json:"columns" validate:"required,min=1"`
	Tickers []string `json:"tickers,omitempty"`
	Limit   int      `json:"limit" default:"500" validate:"gte=1,lte=5000"`
	// Async queues the collection instead of running it inline. Opt-in so
	// a zero value keeps the synchronous path.
	Async bool `json:"async"`
}

type HistoryRequest struct {
	From    string `query:"from" json:"from"`
	To      string `query:"to" json:"to"`
	Combine bool   `query:"combine" json:"combine"`
}
