package api

import (
	"errors"
	"fmt"
	"time"

	models "github.com/jam2205/TradingView-Screener/internal/domain/models"
	domrepo "github.com/jam2205/TradingView-Screener/internal/domain/repository"
	"github.com/jam2205/TradingView-Screener/internal/usecase"
	"github.com/jam2205/TradingView-Screener/pkg/cache"
	xhttp "github.com/jam2205/TradingView-Screener/pkg/http"
	xlogger "github.com/jam2205/TradingView-Screener/pkg/logger"
	"github.com/jam2205/TradingView-Screener/pkg/queue"
	"github.com/jam2205/TradingView-Screener/pkg/util"

	"github.com/labstack/echo/v4"
)

const scanCacheTTL = 30 * time.Second

// ScannerEchoHandler exposes scans, collections and historical loads over HTTP.
type ScannerEchoHandler struct {
	logger    *xlogger.Logger
	collector *usecase.Collector
	scanner   *usecase.MultiAssetScanner
	exec      domrepo.QueryExecutor
	cache     cache.Service
	jobs      queue.QueueService
}

func NewScannerEchoHandler(
	logger *xlogger.Logger,
	collector *usecase.Collector,
	scanner *usecase.MultiAssetScanner,
	exec domrepo.QueryExecutor,
	cacheSvc cache.Service,
	jobs queue.QueueService,
) *ScannerEchoHandler {
	return &ScannerEchoHandler{
		logger:    logger,
		collector: collector,
		scanner:   scanner,
		exec:      exec,
		cache:     cacheSvc,
		jobs:      jobs,
	}
}

func (h *ScannerEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/scan", h.Scan)
	g.POST("/scan/market", h.MarketScan)
	g.GET("/scan/markets", h.AllMarkets)
	g.POST("/collect", h.Collect)
	g.GET("/datasets/:dataset/history", h.History)
	g.GET("/datasets/:dataset/timestamps", h.Timestamps)
}

// Scan runs a symbol scan, served from cache when an identical scan ran
// within the TTL.
func (h *ScannerEchoHandler) Scan(c echo.Context) error {
	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	key := scanCacheKey("scan", req.Timeframe, req.Symbols, req.Columns)
	if h.cache != nil {
		var cached models.Snapshot
		if err := h.cache.Get(ctx, key, &cached); err == nil {
			return xhttp.SuccessResponse(c, &cached)
		}
	}

	snap, err := h.scanner.ScanSymbols(ctx, req.Symbols, req.Timeframe, req.Columns)
	if err != nil {
		h.logger.Error("symbol scan error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil {
		_ = h.cache.Set(ctx, key, snap, scanCacheTTL)
	}
	return xhttp.SuccessResponse(c, snap)
}

// MarketScan runs a filtered market-wide scan.
func (h *ScannerEchoHandler) MarketScan(c echo.Context) error {
	req := &models.MarketScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	q := &models.Query{
		Market:  req.Market,
		Columns: req.Columns,
		Filters: req.Filters,
		Limit:   req.Limit,
	}
	if req.SortBy != "" {
		q.Sort = &models.Sort{By: req.SortBy}
	}

	ctx := c.Request().Context()
	key := scanCacheKey("market", req.Market, req.Columns, req.Filters, req.SortBy, req.Limit)
	if h.cache != nil {
		var cached models.Snapshot
		if err := h.cache.Get(ctx, key, &cached); err == nil {
			return xhttp.SuccessResponse(c, &cached)
		}
	}

	snap, err := h.exec.Execute(ctx, q)
	if err != nil {
		h.logger.Error("market scan error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil {
		_ = h.cache.Set(ctx, key, snap, scanCacheTTL)
	}
	return xhttp.SuccessResponse(c, snap)
}

// AllMarkets scans forex, commodities, indices and bonds in one call.
// Failed markets come back as error strings next to the successful ones.
func (h *ScannerEchoHandler) AllMarkets(c echo.Context) error {
	timeframe := c.QueryParam("timeframe")
	if timeframe == "" {
		timeframe = string(domrepo.DefaultTimeframe())
	}

	results := h.scanner.ScanAllMarkets(c.Request().Context(), timeframe)
	out := make(map[string]any, len(results))
	for market, res := range results {
		if res.Err != nil {
			out[market] = map[string]string{"error": res.Err.Error()}
			continue
		}
		out[market] = res.Snapshot
	}
	return xhttp.SuccessResponse(c, out)
}

// Collect triggers a single collection. Async requests are queued and
// acknowledged immediately; sync requests return the collected snapshot.
func (h *ScannerEchoHandler) Collect(c echo.Context) error {
	req := &models.CollectRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	q := &models.Query{
		Market:  req.Market,
		Columns: req.Columns,
		Tickers: req.Tickers,
		Limit:   req.Limit,
	}

	ctx := c.Request().Context()
	if req.Async && h.jobs != nil {
		payload := usecase.CollectJobPayload{Dataset: req.Dataset, Query: q}
		if err := h.jobs.PublishMessage(ctx, usecase.CollectJobType, payload); err != nil {
			h.logger.Error("enqueue collect error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.CreatedResponse(c, map[string]string{
			"dataset": req.Dataset,
			"status":  "queued",
		})
	}

	snap, err := h.collector.CollectOnce(ctx, q, req.Dataset)
	if err != nil {
		h.logger.Error("collect error",
			xlogger.String("dataset", req.Dataset),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, snap)
}

// History loads persisted snapshots of a dataset, optionally bounded and
// optionally combined into one table.
func (h *ScannerEchoHandler) History(c echo.Context) error {
	dataset := c.Param("dataset")
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var start, end time.Time
	if req.From != "" {
		t, ok := util.ParseTime(req.From)
		if !ok {
			return xhttp.BadRequestResponse(c, fmt.Sprintf("invalid from time: %s", req.From))
		}
		start = t
	}
	if req.To != "" {
		t, ok := util.ParseTime(req.To)
		if !ok {
			return xhttp.BadRequestResponse(c, fmt.Sprintf("invalid to time: %s", req.To))
		}
		end = t
	}

	ctx := c.Request().Context()
	if req.Combine {
		snap, err := h.collector.LoadHistoricalCombined(ctx, dataset, start, end)
		if err != nil {
			return h.historyError(c, dataset, err)
		}
		return xhttp.SuccessResponse(c, snap)
	}

	snaps, err := h.collector.LoadHistorical(ctx, dataset, start, end)
	if err != nil {
		return h.historyError(c, dataset, err)
	}
	return xhttp.ListResponse(c, snaps, int64(len(snaps)))
}

// Timestamps lists collection times recorded for a dataset.
func (h *ScannerEchoHandler) Timestamps(c echo.Context) error {
	dataset := c.Param("dataset")
	stamps, err := h.collector.ListCollections(c.Request().Context(), dataset)
	if err != nil {
		h.logger.Error("list timestamps error",
			xlogger.String("dataset", dataset),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, stamps, int64(len(stamps)))
}

func (h *ScannerEchoHandler) historyError(c echo.Context, dataset string, err error) error {
	if errors.Is(err, domrepo.ErrNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no snapshots for dataset %s", dataset))
	}
	h.logger.Error("history load error",
		xlogger.String("dataset", dataset),
		xlogger.Error(err),
	)
	return xhttp.AppErrorResponse(c, err)
}

func scanCacheKey(kind string, params ...any) string {
	return cache.GenerateKey("scan", cache.HashKey(cache.GenerateKeyWithParams(kind, params...)))
}
