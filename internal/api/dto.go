package api

import (
	"github.com/starford/refscan/internal/index"
	"github.com/starford/refscan/internal/models"
	"github.com/starford/refscan/internal/scanservice"
)

// MissingModule is one missing import target (aliased from the domain layer).
type MissingModule = scanservice.MissingModule

// MissingEntry is one unresolved import as written.
type MissingEntry = models.MissingEntry

// MissingAsset is one missing asset reference.
type MissingAsset = models.MissingAsset

// Reference is one resolved reference row (aliased from the index layer).
type Reference = index.ResultRow

// MissingModulesResponse wraps the missing module listing.
type MissingModulesResponse struct {
	Modules []MissingModule `json:"modules"`
	Total   int             `json:"total"`
}

// MissingAssetsResponse wraps missing asset paths grouped by category.
type MissingAssetsResponse struct {
	Assets map[string][]string `json:"assets"`
	Total  int                 `json:"total"`
}

// MissingEntriesResponse lists every missing reference in scan order.
type MissingEntriesResponse struct {
	Imports []MissingEntry `json:"imports"`
	Assets  []MissingAsset `json:"assets"`
}

// ReferencesResponse wraps importer and search results.
type ReferencesResponse struct {
	References []Reference `json:"references"`
	Total      int         `json:"total"`
}

// ScanResponse is returned by POST /scan.
type ScanResponse struct {
	Files          int   `json:"files"`
	References     int   `json:"total_references"`
	MissingModules int   `json:"missing_modules"`
	MissingAssets  int   `json:"missing_assets"`
	DurationMS     int64 `json:"duration_ms"`
}
