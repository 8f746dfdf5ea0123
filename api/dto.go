/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types from the
  fund package are embedded directly where their JSON shape is already the
  contract (records, rollup rows); everything request-specific lives here.

NAMING CONVENTION:
  - *DTO: Response fragments returned to clients
  - *Request: Request body types from clients
  - *Response: Top-level response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - report/views.go: View results are returned as-is
*/
package api

import (
	"encoding/json"

	"github.com/warp/fund-returns/fund"
	"github.com/warp/fund-returns/report"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse reports liveness and the stored row count.
type HealthResponse struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
}

// =============================================================================
// INGESTION
// =============================================================================

// RowErrorDTO is one input row that could not be normalized.
type RowErrorDTO struct {
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
	Error  string `json:"error"`
}

// UploadResponse summarizes one spreadsheet upload.
type UploadResponse struct {
	AsOfDate       fund.Date     `json:"asof_date"`
	Sheet          string        `json:"sheet"`
	Headers        []string      `json:"headers"`
	Rows           int           `json:"rows"`
	ExistingBefore int           `json:"existing_before"`
	Written        int           `json:"written"`
	CountAfter     int           `json:"count_after"`
	RowErrors      []RowErrorDTO `json:"row_errors"`
}

// PurgeRequest carries the two-step confirmation for deleting every row.
type PurgeRequest struct {
	Acknowledged  bool   `json:"acknowledged"`
	Confirmation  string `json:"confirmation"`
	AdminPassword string `json:"admin_password"`
}

// PurgeResponse reports how many rows were removed.
type PurgeResponse struct {
	Deleted int `json:"deleted"`
}

// SamplesRequest selects the demo dataset shape. Zero values use defaults.
type SamplesRequest struct {
	Months        int    `json:"months"`
	AdminPassword string `json:"admin_password"`
}

// SamplesResponse reports the loaded demo dataset.
type SamplesResponse struct {
	Written   int         `json:"written"`
	AsOfDates []fund.Date `json:"asof_dates"`
}

// =============================================================================
// QUERIES
// =============================================================================

type RecordsResponse struct {
	Range   fund.DateRange `json:"range"`
	Count   int            `json:"count"`
	Records []fund.Record  `json:"records"`
}

type RankResponse struct {
	Range  fund.DateRange `json:"range"`
	Period fund.Period    `json:"period"`
	N      int            `json:"n"`
	Top    []fund.Record  `json:"top"`
	Bottom []fund.Record  `json:"bottom"`
}

type ManagersResponse struct {
	Managers []string `json:"managers"`
}

type ManagerRollupResponse struct {
	Query fund.ManagerRollupQuery `json:"query"`
	Rows  []fund.ManagerRollupRow `json:"rows"`
}

type ProductsResponse struct {
	Manager string        `json:"manager"`
	Count   int           `json:"count"`
	Records []fund.Record `json:"records"`
}

type ProductNamesResponse struct {
	Manager  string   `json:"manager"`
	Products []string `json:"products"`
}

type PeriodRollupResponse struct {
	Query fund.PeriodRollupQuery `json:"query"`
	Rows  []fund.PeriodRollupRow `json:"rows"`
}

type TimeSeriesResponse struct {
	Query   fund.TimeSeriesQuery `json:"query"`
	Periods []fund.Period        `json:"periods"`
	Records []fund.Record        `json:"records"`
	Summary []fund.SeriesSummary `json:"summary"`
}

// =============================================================================
// ANNOTATIONS
// =============================================================================

// AnnotationRequest names one chart of one view state to describe.
type AnnotationRequest struct {
	View     string          `json:"view"`
	Chart    string          `json:"chart"`
	State    json.RawMessage `json:"state"`
	Password string          `json:"password"`
}

// AnnotationResponse always carries the chart; exactly one of Narrative and
// NarrativeError is set.
type AnnotationResponse struct {
	View           string       `json:"view"`
	Chart          string       `json:"chart"`
	Title          string       `json:"title"`
	PNG            []byte       `json:"png"`
	Table          report.Table `json:"table"`
	Narrative      string       `json:"narrative,omitempty"`
	NarrativeError string       `json:"narrative_error,omitempty"`
}
