package models

// Filter is one screener filter clause (e.g. market_cap_basic > 1e9).
type Filter struct {
	Field     string `json:"field"`
	Operation string `json:"operation"`
	Value     any    `json:"value"`
}

// Sort orders the screener result by a single column.
type Sort struct {
	By        string `json:"by"`
	Ascending bool   `json:"ascending"`
}

// Query is the payload handed to the query-execution collaborator. It is a
// plain value object; building and interpreting it is the executor's concern.
type Query struct {
	Market  string   `json:"market"`
	Columns []string `json:"columns"`
	Tickers []string `json:"tickers,omitempty"`
	Filters []Filter `json:"filters,omitempty"`
	Sort    *Sort    `json:"sort,omitempty"`
	Offset  int      `json:"offset"`
	Limit   int      `json:"limit"`
}

// Clone returns a copy safe to mutate independently.
func (q *Query) Clone() *Query {
	c := *q
	c.Columns = append([]string(nil), q.Columns...)
	c.Tickers = append([]string(nil), q.Tickers...)
	c.Filters = append([]Filter(nil), q.Filters...)
	if q.Sort != nil {
		s := *q.Sort
		c.Sort = &s
	}
	return &c
}
