// Package models defines the domain types for refscan.
package models

import "time"

// Kind tells how a reference was written in the source.
type Kind string

const (
	// KindImport is a module import (import/require/dynamic import).
	KindImport Kind = "import"
	// KindAsset is an embedded asset path (image, style sheet, font).
	KindAsset Kind = "asset"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindImport || k == KindAsset
}

// Category classifies a missing asset.
type Category string

const (
	CategoryImage Category = "image"
	CategoryStyle Category = "style"
	CategoryFont  Category = "font"
)

// Categories lists every category in report order.
var Categories = []Category{CategoryImage, CategoryStyle, CategoryFont}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryImage, CategoryStyle, CategoryFont:
		return true
	}
	return false
}

// Reference is one textual mention of another file found during extraction.
type Reference struct {
	Origin   string   `json:"origin"`             // tree-relative path of the referencing file
	Raw      string   `json:"raw"`                // target exactly as written
	Kind     Kind     `json:"kind"`
	Category Category `json:"category,omitempty"` // asset references only
	Rule     string   `json:"rule"`
	Line     int      `json:"line"`
}

// MissingEntry is an import reference whose candidate set matched nothing on disk.
type MissingEntry struct {
	ImportedIn    string `json:"imported_in"`
	MissingTarget string `json:"missing_target"`
	OriginalText  string `json:"original_text"`
}

// MissingAsset is an asset reference whose file does not exist.
type MissingAsset struct {
	File     string   `json:"file"`
	Asset    string   `json:"asset"`
	Category Category `json:"category"`
}

// SourceFile is a lightweight listing entry for a scanned file.
type SourceFile struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}
