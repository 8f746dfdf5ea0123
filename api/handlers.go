/*
handlers.go - HTTP API handlers for the fund returns dashboard

PURPOSE:
  Exposes ingestion, the query layer, report views and chart annotation via
  REST. Handles HTTP request/response and JSON serialization, and delegates
  to the fund, sheet, report and annotate packages.

ENDPOINTS:
  Ingestion:
    POST   /api/uploads                 Spreadsheet + asof_date -> records
    GET    /api/uploads/template        Empty xlsx with the expected headers

  Admin:
    POST   /api/admin/purge             Confirmed delete of every row
    POST   /api/admin/samples           Load the demo dataset

  Queries:
    GET    /api/records                 Range fetch
    GET    /api/records/rank            Top/bottom N by one period
    GET    /api/managers                Distinct managers
    GET    /api/managers/rollup         Per-manager aggregates
    GET    /api/managers/{manager}/products       One manager's rows
    GET    /api/managers/{manager}/product-names  One manager's products
    GET    /api/periods/rollup          Per-date aggregates
    GET    /api/timeseries              Selected products over time

  Views:
    POST   /api/views/{view}            Run a view with a JSON state
    GET    /api/views/{view}/charts/{chart}  One chart as PNG
    POST   /api/annotations             Chart plus narrative commentary

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (range, periods, confirmation)
  3. Call the store, a view or the annotator
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON {error, details} with status from statusFor:
  - 400: Invalid range, query, period, unreadable file, unconfirmed purge
  - 401: Wrong password
  - 404: Unknown view or chart
  - 422: Empty batch, nothing to chart
  - 500: Write or query failure
  - 503: Store unavailable
  Annotator failures are not errors: the chart is returned with
  narrative_error set.

SEE ALSO:
  - dto.go: Request/response data structures
  - samples.go: Demo dataset
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/fund-returns/annotate"
	"github.com/warp/fund-returns/fund"
	"github.com/warp/fund-returns/report"
	"github.com/warp/fund-returns/sheet"
)

// PurgePhrase must be typed exactly to confirm a purge.
const PurgePhrase = "DELETE ALL DATA"

// MaxUploadBytes bounds the multipart upload body.
const MaxUploadBytes = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options carries the optional handler settings.
type Options struct {
	Columns           fund.SourceColumns
	AdminPassword     string
	AnnotatorPassword string
	Logger            *zap.Logger
	Today             func() fund.Date
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     fund.Repository
	Views     *report.Views
	Annotator annotate.Annotator

	normalizer        *fund.Normalizer
	columns           fund.SourceColumns
	adminPassword     string
	annotatorPassword string
	logger            *zap.Logger
	today             func() fund.Date
}

// NewHandler creates a handler. A nil annotator behaves as annotate.Disabled.
func NewHandler(store fund.Repository, views *report.Views, annotator annotate.Annotator, opts Options) *Handler {
	if annotator == nil {
		annotator = annotate.Disabled{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Today == nil {
		opts.Today = fund.Today
	}
	columns := opts.Columns.WithDefaults()
	return &Handler{
		Store:             store,
		Views:             views,
		Annotator:         annotator,
		normalizer:        fund.NewNormalizer(columns),
		columns:           columns,
		adminPassword:     opts.AdminPassword,
		annotatorPassword: opts.AnnotatorPassword,
		logger:            opts.Logger,
		today:             opts.Today,
	}
}

// Health returns liveness plus the stored row count.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	n, err := h.Store.Count(r.Context())
	if err != nil {
		h.fail(w, r, "Store is not reachable", err)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Records: n})
}

// =============================================================================
// INGESTION HANDLERS
// =============================================================================

// Upload reads a spreadsheet, normalizes it against asof_date and writes the
// batch atomically.
// POST /api/uploads (multipart: file, asof_date)
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		h.fail(w, r, "Invalid upload", fmt.Errorf("%w: %v", fund.ErrInvalidQuery, err))
		return
	}

	asOf, err := fund.ParseDate(r.FormValue("asof_date"))
	if err != nil {
		h.fail(w, r, "Invalid asof_date", fmt.Errorf("%w: asof_date: %v", fund.ErrInvalidQuery, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, "Missing file", fmt.Errorf("%w: file: %v", fund.ErrInvalidQuery, err))
		return
	}
	defer file.Close()

	table, err := sheet.Read(header.Filename, file)
	if err != nil {
		h.fail(w, r, "Could not read spreadsheet", err)
		return
	}

	existing, err := h.Store.CountByDate(ctx, asOf)
	if err != nil {
		h.fail(w, r, "Failed to count existing records", err)
		return
	}

	records, rowErrs, err := h.normalizer.Prepare(table.Rows, asOf)
	for _, re := range rowErrs {
		h.logger.Warn("row skipped",
			zap.Int("row", re.Index),
			zap.String("column", re.Column),
			zap.Error(re.Err),
		)
	}
	if err != nil {
		h.fail(w, r, "No records to write", err)
		return
	}

	written, err := h.Store.Write(ctx, records)
	if err != nil {
		h.fail(w, r, "Failed to write records", err)
		return
	}

	after, err := h.Store.CountByDate(ctx, asOf)
	if err != nil {
		h.fail(w, r, "Failed to verify written records", err)
		return
	}

	h.logger.Info("upload stored",
		zap.String("file", header.Filename),
		zap.Stringer("asof_date", asOf),
		zap.Int("written", written),
		zap.Int("skipped", len(rowErrs)),
	)
	writeJSON(w, http.StatusCreated, UploadResponse{
		AsOfDate:       asOf,
		Sheet:          table.Sheet,
		Headers:        table.Headers,
		Rows:           len(table.Rows),
		ExistingBefore: existing,
		Written:        written,
		CountAfter:     after,
		RowErrors:      rowErrorDTOs(rowErrs),
	})
}

// Template downloads an empty workbook with the expected header row.
// GET /api/uploads/template
func (h *Handler) Template(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := sheet.WriteTemplate(&buf, h.columns); err != nil {
		h.fail(w, r, "Failed to build template", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="fund_returns_template.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Purge deletes every row after the two-step confirmation.
// POST /api/admin/purge
func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	var req PurgeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	if !h.checkPassword(h.adminPassword, req.AdminPassword) {
		h.fail(w, r, "Admin password required", fund.ErrUnauthorized)
		return
	}
	if !req.Acknowledged || req.Confirmation != PurgePhrase {
		h.fail(w, r, "Purge not confirmed",
			fmt.Errorf("%w: acknowledge and type %q", fund.ErrPurgeNotConfirmed, PurgePhrase))
		return
	}

	deleted, err := h.Store.PurgeAll(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to purge records", err)
		return
	}
	h.logger.Warn("all records purged", zap.Int("deleted", deleted), zap.String("request_id", middleware.GetReqID(r.Context())))
	writeJSON(w, http.StatusOK, PurgeResponse{Deleted: deleted})
}

// LoadSamples appends the demo dataset.
// POST /api/admin/samples
func (h *Handler) LoadSamples(w http.ResponseWriter, r *http.Request) {
	var req SamplesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	if !h.checkPassword(h.adminPassword, req.AdminPassword) {
		h.fail(w, r, "Admin password required", fund.ErrUnauthorized)
		return
	}
	months := req.Months
	if months == 0 {
		months = DefaultSampleMonths
	}
	if months < 1 || months > MaxSampleMonths {
		h.fail(w, r, "Invalid months",
			fmt.Errorf("%w: months must be between 1 and %d", fund.ErrInvalidQuery, MaxSampleMonths))
		return
	}

	records := SampleRecords(h.today(), months)
	written, err := h.Store.Write(r.Context(), records)
	if err != nil {
		h.fail(w, r, "Failed to write sample records", err)
		return
	}
	writeJSON(w, http.StatusCreated, SamplesResponse{Written: written, AsOfDates: SampleDates(h.today(), months)})
}

// =============================================================================
// QUERY HANDLERS
// =============================================================================

// ListRecords returns every row in the range, newest first.
// GET /api/records?start=&end=
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	rng, err := h.rangeParam(r)
	if err != nil {
		h.fail(w, r, "Invalid date range", err)
		return
	}
	records, err := h.Store.RangeFetch(r.Context(), rng)
	if err != nil {
		h.fail(w, r, "Failed to fetch records", err)
		return
	}
	writeJSON(w, http.StatusOK, RecordsResponse{Range: rng, Count: len(records), Records: nonNil(records)})
}

// RankRecords returns the top and bottom N rows by one period.
// GET /api/records/rank?start=&end=&period=1Y&n=10
func (h *Handler) RankRecords(w http.ResponseWriter, r *http.Request) {
	rng, err := h.rangeParam(r)
	if err != nil {
		h.fail(w, r, "Invalid date range", err)
		return
	}
	period := fund.Period1Y
	if s := r.URL.Query().Get("period"); s != "" {
		if period, err = fund.ParsePeriod(s); err != nil {
			h.fail(w, r, "Invalid period", err)
			return
		}
	}
	n, err := intParam(r, "n", fund.DefaultRankSize, 1, 100)
	if err != nil {
		h.fail(w, r, "Invalid n", err)
		return
	}

	records, err := h.Store.RangeFetch(r.Context(), rng)
	if err != nil {
		h.fail(w, r, "Failed to fetch records", err)
		return
	}
	writeJSON(w, http.StatusOK, RankResponse{
		Range:  rng,
		Period: period,
		N:      n,
		Top:    nonNil(fund.TopN(records, period, n)),
		Bottom: nonNil(fund.BottomN(records, period, n)),
	})
}

// ListManagers returns distinct managers, optionally within a range.
// GET /api/managers
func (h *Handler) ListManagers(w http.ResponseWriter, r *http.Request) {
	rng, err := h.optionalRange(r)
	if err != nil {
		h.fail(w, r, "Invalid date range", err)
		return
	}
	managers, err := h.Store.DistinctManagers(r.Context(), rng)
	if err != nil {
		h.fail(w, r, "Failed to list managers", err)
		return
	}
	writeJSON(w, http.StatusOK, ManagersResponse{Managers: nonNil(managers)})
}

// ManagerRollup aggregates per manager.
// GET /api/managers/rollup?sort=total_assets&periods=1Y,3Y
func (h *Handler) ManagerRollup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortBy, err := fund.ParseManagerSortKey(q.Get("sort"))
	if err != nil {
		h.fail(w, r, "Invalid sort key", err)
		return
	}
	periods, err := fund.ParsePeriods(q["periods"])
	if err != nil {
		h.fail(w, r, "Invalid periods", err)
		return
	}
	rng, err := h.optionalRange(r)
	if err != nil {
		h.fail(w, r, "Invalid date range", err)
		return
	}
	query, err := fund.ManagerRollupQuery{SortBy: sortBy, Periods: periods, Range: rng}.Normalize()
	if err != nil {
		h.fail(w, r, "Invalid rollup query", err)
		return
	}

	rows, err := h.Store.ManagerRollup(r.Context(), query)
	if err != nil {
		h.fail(w, r, "Failed to aggregate managers", err)
		return
	}
	writeJSON(w, http.StatusOK, ManagerRollupResponse{Query: query, Rows: nonNil(rows)})
}

// ListProducts returns one manager's rows, largest total amount first.
// GET /api/managers/{manager}/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	manager, err := managerParam(r)
	if err != nil {
		h.fail(w, r, "Invalid manager", err)
		return
	}
	rng, err := h.optionalRange(r)
	if err != nil {
		h.fail(w, r, "Invalid date range", err)
		return
	}
	query := fund.ProductQuery{Manager: manager, Range: rng}
	if err := query.Validate(); err != nil {
		h.fail(w, r, "Invalid product query", err)
		return
	}

	records, err := h.Store.ProductFetch(r.Context(), query)
	if err != nil {
		h.fail(w, r, "Failed to fetch products", err)
		return
	}
	writeJSON(w, http.StatusOK, ProductsResponse{Manager: manager, Count: len(records), Records: nonNil(records)})
}

// ListProductNames returns one manager's distinct product names.
// GET /api/managers/{manager}/product-names
func (h *Handler) ListProductNames(w http.ResponseWriter, r *http.Request) {
	manager, err := managerParam(r)
	if err != nil {
		h.fail(w, r, "Invalid manager", err)
		return
	}
	rng, err := h.optionalRange(r)
	if err != nil {
		h.fail(w, r, "Invalid date range", err)
		return
	}
	products, err := h.Store.DistinctProducts(r.Context(), manager, rng)
	if err != nil {
		h.fail(w, r, "Failed to list products", err)
		return
	}
	writeJSON(w, http.StatusOK, ProductNamesResponse{Manager: manager, Products: nonNil(products)})
}

// PeriodRollup aggregates per as-of date.
// GET /api/periods/rollup?start=&end=&periods=
func (h *Handler) PeriodRollup(w http.ResponseWriter, r *http.Request) {
	rng, err := h.rangeParam(r)
	if err != nil {
		h.fail(w, r, "Invalid date range", err)
		return
	}
	periods, err := fund.ParsePeriods(r.URL.Query()["periods"])
	if err != nil {
		h.fail(w, r, "Invalid periods", err)
		return
	}
	query, err := fund.PeriodRollupQuery{Range: rng, Periods: periods}.Normalize()
	if err != nil {
		h.fail(w, r, "Invalid rollup query", err)
		return
	}

	rows, err := h.Store.PeriodRollup(r.Context(), query)
	if err != nil {
		h.fail(w, r, "Failed to aggregate periods", err)
		return
	}
	writeJSON(w, http.StatusOK, PeriodRollupResponse{Query: query, Rows: nonNil(rows)})
}

// TimeSeries returns the selected products over time with a per-product
// summary.
// GET /api/timeseries?manager=&product=&product=&start=&end=&periods=
func (h *Handler) TimeSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := h.rangeParam(r)
	if err != nil {
		h.fail(w, r, "Invalid date range", err)
		return
	}
	periods, err := fund.ParsePeriods(q["periods"])
	if err != nil {
		h.fail(w, r, "Invalid periods", err)
		return
	}
	if len(periods) == 0 {
		periods = []fund.Period{fund.Period1Y, fund.Period3Y}
	}
	query := fund.TimeSeriesQuery{Manager: q.Get("manager"), Products: q["product"], Range: rng}
	if err := query.Validate(); err != nil {
		h.fail(w, r, "Invalid time series query", err)
		return
	}

	records, err := h.Store.TimeSeries(r.Context(), query)
	if err != nil {
		h.fail(w, r, "Failed to fetch time series", err)
		return
	}
	writeJSON(w, http.StatusOK, TimeSeriesResponse{
		Query:   query,
		Periods: periods,
		Records: nonNil(records),
		Summary: nonNil(fund.SummarizeSeries(records, query.Products, periods)),
	})
}

// =============================================================================
// VIEW HANDLERS
// =============================================================================

// RunView runs a report view against the JSON state in the body. Charts are
// embedded as base64 unless images=false.
// POST /api/views/{view}?images=false
func (h *Handler) RunView(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.fail(w, r, "Invalid request body", fmt.Errorf("%w: %v", fund.ErrInvalidQuery, err))
		return
	}
	res, err := h.Views.Run(r.Context(), chi.URLParam(r, "view"), raw, h.today())
	if err != nil {
		h.fail(w, r, "Failed to run view", err)
		return
	}
	if r.URL.Query().Get("images") == "false" {
		res.DropImages()
	}
	writeJSON(w, http.StatusOK, res)
}

// ViewChart renders one chart of a view as PNG. The view state is passed as
// JSON in the state query parameter.
// GET /api/views/{view}/charts/{chart}?state={...}
func (h *Handler) ViewChart(w http.ResponseWriter, r *http.Request) {
	res, err := h.Views.Run(r.Context(), chi.URLParam(r, "view"), []byte(r.URL.Query().Get("state")), h.today())
	if err != nil {
		h.fail(w, r, "Failed to run view", err)
		return
	}
	chart, err := res.Chart(chi.URLParam(r, "chart"))
	if err != nil {
		h.fail(w, r, "Chart not available", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(chart.PNG)
}

// Annotate renders one chart and asks the annotator to describe it. An
// annotator failure still returns the chart, with narrative_error set.
// POST /api/annotations
func (h *Handler) Annotate(w http.ResponseWriter, r *http.Request) {
	var req AnnotationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	if !h.checkPassword(h.annotatorPassword, req.Password) {
		h.fail(w, r, "Annotator password required", fund.ErrUnauthorized)
		return
	}

	res, err := h.Views.Run(r.Context(), req.View, req.State, h.today())
	if err != nil {
		h.fail(w, r, "Failed to run view", err)
		return
	}
	chart, err := res.Chart(req.Chart)
	if err != nil {
		h.fail(w, r, "Chart not available", err)
		return
	}

	resp := AnnotationResponse{
		View:  req.View,
		Chart: req.Chart,
		Title: chart.Title,
		PNG:   chart.PNG,
		Table: chart.Table,
	}
	text, err := h.Annotator.Annotate(r.Context(), annotate.Request{
		Title:    chart.Title,
		ChartPNG: chart.PNG,
		Table:    report.TableText(chart.Table),
	})
	if err != nil {
		h.logger.Warn("annotation failed",
			zap.String("view", req.View),
			zap.String("chart", req.Chart),
			zap.Error(err),
		)
		resp.NarrativeError = err.Error()
	} else {
		resp.Narrative = text
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fund.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, report.ErrUnknownView), errors.Is(err, report.ErrUnknownChart):
		return http.StatusNotFound
	case fund.IsClientError(err), errors.Is(err, sheet.ErrUnreadable):
		return http.StatusBadRequest
	case errors.Is(err, fund.ErrEmptyBatch), errors.Is(err, report.ErrNoData):
		return http.StatusUnprocessableEntity
	case fund.IsStorageError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and writes it with the mapped status.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	fields := []zap.Field{
		zap.Int("status", status),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, fields...)
	} else {
		h.logger.Info(message, fields...)
	}
	writeError(w, status, message, err)
}

// checkPassword passes when no password is configured.
func (h *Handler) checkPassword(want, got string) bool {
	if want == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// rangeParam reads start and end, defaulting each to the trailing year.
func (h *Handler) rangeParam(r *http.Request) (fund.DateRange, error) {
	q := r.URL.Query()
	rng := fund.TrailingYear(h.today())
	if s := q.Get("start"); s != "" {
		d, err := fund.ParseDate(s)
		if err != nil {
			return rng, fmt.Errorf("%w: start: %v", fund.ErrInvalidRange, err)
		}
		rng.Start = d
	}
	if s := q.Get("end"); s != "" {
		d, err := fund.ParseDate(s)
		if err != nil {
			return rng, fmt.Errorf("%w: end: %v", fund.ErrInvalidRange, err)
		}
		rng.End = d
	}
	return rng, rng.Validate()
}

// optionalRange is nil when neither start nor end is given.
func (h *Handler) optionalRange(r *http.Request) (*fund.DateRange, error) {
	q := r.URL.Query()
	if q.Get("start") == "" && q.Get("end") == "" {
		return nil, nil
	}
	rng, err := h.rangeParam(r)
	if err != nil {
		return nil, err
	}
	return &rng, nil
}

// managerParam reads the manager segment. chi matches on RawPath when it is
// set, so only then is the segment still escaped.
func managerParam(r *http.Request) (string, error) {
	manager := chi.URLParam(r, "manager")
	if r.URL.RawPath != "" {
		decoded, err := url.PathUnescape(manager)
		if err != nil {
			return "", fmt.Errorf("%w: manager: %v", fund.ErrInvalidQuery, err)
		}
		manager = decoded
	}
	return strings.TrimSpace(manager), nil
}

func intParam(r *http.Request, key string, def, lo, hi int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%w: %s must be an integer between %d and %d", fund.ErrInvalidQuery, key, lo, hi)
	}
	return n, nil
}

// decodeJSON decodes a JSON body strictly. An empty body decodes to the zero value.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", fund.ErrInvalidQuery, err)
	}
	return nil
}

func rowErrorDTOs(errs []fund.RowError) []RowErrorDTO {
	dtos := make([]RowErrorDTO, len(errs))
	for i, e := range errs {
		dtos[i] = RowErrorDTO{Row: e.Index, Column: e.Column, Error: e.Err.Error()}
	}
	return dtos
}

// nonNil keeps empty results serialized as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
