// Package extract turns file content into raw module and asset references
// using a table of pattern rules.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/starford/refscan/internal/models"
)

// Rule maps a pattern to the kind of reference it finds. Capture group 1 of
// Pattern is the raw target.
type Rule struct {
	Name     string          `yaml:"name"`
	Pattern  string          `yaml:"pattern"`
	Kind     models.Kind     `yaml:"kind"`
	Category models.Category `yaml:"category"`
	// Files lists the file extensions the rule is applied to.
	Files []string `yaml:"files"`
}

// assetTail matches an asset path up to the closing quote, backtick,
// parenthesis or whitespace.
const assetTail = "[^'\"`()\\s]+"

var (
	scriptFiles = []string{".js", ".vue", ".ts"}
	assetFiles  = []string{".js", ".vue", ".scss", ".css"}
)

// DefaultRules returns the built-in rule table.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "import-from", Pattern: `import\s+.*\s+from\s+['"]([^'"]+)['"]`, Kind: models.KindImport, Files: scriptFiles},
		{Name: "import-bare", Pattern: `import\s+['"]([^'"]+)['"]`, Kind: models.KindImport, Files: scriptFiles},
		{Name: "route-component", Pattern: `component:\s*\(\)\s*=>\s*import\s*\(['"]([^'"]+)['"]\)`, Kind: models.KindImport, Files: scriptFiles},
		{Name: "src-alias", Pattern: `src=['"](@/[^'"]+)['"]`, Kind: models.KindImport, Files: scriptFiles},
		{Name: "require", Pattern: `require\s*\(['"]([^'"]+)['"]\)`, Kind: models.KindImport, Files: scriptFiles},
		{Name: "asset-image", Pattern: "(@/assets/images/" + assetTail + ")", Kind: models.KindAsset, Category: models.CategoryImage, Files: assetFiles},
		{Name: "asset-style", Pattern: "(@/assets/styles/" + assetTail + ")", Kind: models.KindAsset, Category: models.CategoryStyle, Files: assetFiles},
		{Name: "asset-font", Pattern: "(@/assets/fonts/" + assetTail + ")", Kind: models.KindAsset, Category: models.CategoryFont, Files: assetFiles},
	}
}

type compiledRule struct {
	Rule
	re    *regexp.Regexp
	files map[string]struct{}
}

// Extractor applies a compiled rule table to file contents.
type Extractor struct {
	rules       []compiledRule
	fingerprint string
}

// New compiles and validates rules.
func New(rules []Rule) (*Extractor, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("extract: no rules")
	}
	out := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("rule[%d]", i)
		}
		if !r.Kind.Valid() {
			return nil, fmt.Errorf("extract: %s: invalid kind %q", name, r.Kind)
		}
		if r.Kind == models.KindAsset && !r.Category.Valid() {
			return nil, fmt.Errorf("extract: %s: asset rule needs a category, got %q", name, r.Category)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("extract: %s: compile pattern: %w", name, err)
		}
		if re.NumSubexp() != 1 {
			return nil, fmt.Errorf("extract: %s: pattern must have exactly one capture group, has %d", name, re.NumSubexp())
		}
		files := make(map[string]struct{}, len(r.Files))
		for _, ext := range r.Files {
			files[strings.ToLower(ext)] = struct{}{}
		}
		r.Name = name
		out = append(out, compiledRule{Rule: r, re: re, files: files})
	}
	return &Extractor{rules: out, fingerprint: fingerprint(out)}, nil
}

// Fingerprint identifies the rule table. Cached extraction results are only
// valid for the fingerprint they were produced with.
func (e *Extractor) Fingerprint() string {
	return e.fingerprint
}

func fingerprint(rules []compiledRule) string {
	h := sha256.New()
	for _, r := range rules {
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%v\n", r.Name, r.Pattern, r.Kind, r.Category, r.Files)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Extensions returns the sorted union of file extensions any rule applies to.
func (e *Extractor) Extensions() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range e.rules {
		for ext := range r.files {
			if _, ok := seen[ext]; ok {
				continue
			}
			seen[ext] = struct{}{}
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}

// Extract returns one Reference per rule match, in rule order then match order.
func (e *Extractor) Extract(origin string, content []byte) []models.Reference {
	ext := strings.ToLower(path.Ext(origin))
	var lines []int
	var out []models.Reference
	for _, r := range e.rules {
		if _, ok := r.files[ext]; !ok && len(r.files) > 0 {
			continue
		}
		matches := r.re.FindAllSubmatchIndex(content, -1)
		if len(matches) == 0 {
			continue
		}
		if lines == nil {
			lines = lineStarts(content)
		}
		for _, m := range matches {
			start, end := m[2], m[3]
			if start < 0 {
				continue
			}
			out = append(out, models.Reference{
				Origin:   origin,
				Raw:      string(content[start:end]),
				Kind:     r.Kind,
				Category: r.Category,
				Rule:     r.Name,
				Line:     lineOf(lines, start),
			})
		}
	}
	return out
}

// lineStarts returns the byte offset at which every line begins.
func lineStarts(content []byte) []int {
	starts := []int{0}
	for i, b := range content {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineOf maps a byte offset to its 1-based line number.
func lineOf(starts []int, offset int) int {
	return sort.Search(len(starts), func(i int) bool { return starts[i] > offset })
}
