// Package report folds resolution results into a Report and renders it.
package report

import (
	"fmt"
	"sort"

	"github.com/starford/refscan/internal/models"
	"github.com/starford/refscan/internal/resolve"
)

// Report is the aggregate output of one scan. Its JSON encoding is the
// machine-readable report file; map keys and slices are sorted so that an
// unchanged tree always produces identical bytes.
type Report struct {
	TotalReferences      int                 `json:"total_references"`
	TotalImports         int                 `json:"total_imports"`
	TotalAssetReferences int                 `json:"total_asset_references"`
	MissingModules       int                 `json:"missing_modules"`
	MissingAssets        int                 `json:"missing_assets"`
	MissingFilesDetail   map[string][]string `json:"missing_files_detail"`
	MissingAssetsDetail  map[string][]string `json:"missing_assets_detail"`
	UnreadableFiles      []string            `json:"unreadable_files,omitempty"`

	// Entries and Assets keep every missing reference, in scan order.
	Entries []models.MissingEntry `json:"-"`
	Assets  []models.MissingAsset `json:"-"`
}

// HasMissing reports whether any module or asset is missing.
func (r *Report) HasMissing() bool {
	return r.MissingModules > 0 || r.MissingAssets > 0
}

// ModulePaths returns the missing module paths, sorted.
func (r *Report) ModulePaths() []string {
	return sortedKeys(r.MissingFilesDetail)
}

// Aggregate builds a Report from the complete list of results. Missing
// modules are keyed by normalized target with de-duplicated referencing
// files; missing assets are grouped by category with de-duplicated paths.
func Aggregate(results []resolve.Result, cls *resolve.Classifier, unreadable []string) (*Report, error) {
	rep := &Report{
		MissingFilesDetail:  map[string][]string{},
		MissingAssetsDetail: map[string][]string{},
	}
	importers := make(map[string]map[string]struct{})
	assets := make(map[string]map[string]struct{})

	for _, res := range results {
		ref := res.Reference
		rep.TotalReferences++

		switch ref.Kind {
		case models.KindImport:
			rep.TotalImports++
			if !res.Missing() {
				continue
			}
			rep.MissingModules++
			rep.Entries = append(rep.Entries, models.MissingEntry{
				ImportedIn:    ref.Origin,
				MissingTarget: res.Target,
				OriginalText:  ref.Raw,
			})
			addToSet(importers, res.Target, ref.Origin)

		case models.KindAsset:
			rep.TotalAssetReferences++
			if !res.Missing() {
				continue
			}
			cat, err := cls.Classify(res.Target)
			if err != nil {
				return nil, fmt.Errorf("report: %s:%d: %w", ref.Origin, ref.Line, err)
			}
			if ref.Category != "" && ref.Category != cat {
				return nil, fmt.Errorf("report: %s:%d: rule %q tags %q as %s but it lives under the %s directory",
					ref.Origin, ref.Line, ref.Rule, res.Target, ref.Category, cat)
			}
			rep.MissingAssets++
			rep.Assets = append(rep.Assets, models.MissingAsset{
				File:     ref.Origin,
				Asset:    res.Target,
				Category: cat,
			})
			addToSet(assets, string(cat), res.Target)

		default:
			return nil, fmt.Errorf("report: %s: unknown reference kind %q", ref.Origin, ref.Kind)
		}
	}

	for target, set := range importers {
		rep.MissingFilesDetail[target] = sortedSet(set)
	}
	for cat, set := range assets {
		rep.MissingAssetsDetail[cat] = sortedSet(set)
	}
	if len(unreadable) > 0 {
		rep.UnreadableFiles = append([]string(nil), unreadable...)
		sort.Strings(rep.UnreadableFiles)
	}
	return rep, nil
}

func addToSet(m map[string]map[string]struct{}, key, value string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[value] = struct{}{}
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
