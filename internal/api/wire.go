// Package api holds the HTTP contract between the viewer and the log backend.
package api

import "proxylog/internal/model"

const (
	PathIndex      = "/api/index"
	PathContent    = "/api/content"
	PathTestFilter = "/api/testFilter"
	PathSearch     = "/api/search"
	PathExport     = "/api/export"
	PathImport     = "/api/import"
	PathMetrics    = "/metrics"
	PathHealth     = "/healthz"
)

// Query parameter names.
const (
	ParamFilter     = "filter"
	ParamSearch     = "search"
	ParamFromOffset = "fromOffset"
	ParamToOffset   = "toOffsetExcluding"
)

type IndexResponse = model.IndexSnapshot

type ContentResponse struct {
	Messages []model.ContentEntry `json:"messages"`
}

type TestFilterResponse struct {
	TotalFiltered int    `json:"totalFiltered"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
}

type SearchResponse = model.SearchResult

type ImportResponse struct {
	Imported int `json:"imported"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
