package resolve

import (
	"strings"

	"github.com/starford/refscan/internal/models"
)

// Status is the outcome of resolving one reference.
type Status string

const (
	StatusResolved Status = "resolved"
	StatusMissing  Status = "missing"
	// StatusExternal marks references to packages installed outside the tree.
	StatusExternal Status = "external"
	// StatusSkippedAsset marks imports of style sheets and images, which the
	// bundler loads and which are not checked as modules.
	StatusSkippedAsset Status = "skipped_asset"
)

// Exister reports whether a tree-relative path exists. Implementations treat
// every access error as "does not exist".
type Exister interface {
	Exists(path string) bool
}

// Options configures a Resolver.
type Options struct {
	Normalizer       Normalizer
	Extensions       []string // implicit source extensions, in probe order
	IndexName        string   // implicit directory entry file name, without extension
	ExternalPackages []string // package name prefixes that are never checked
	AssetExtensions  []string // suffixes skipped for import references
}

// DefaultOptions returns the conventions of a Vue project rooted at src/.
func DefaultOptions() Options {
	return Options{
		Normalizer: Normalizer{AliasPrefix: "@/", AliasTarget: "src/"},
		Extensions: []string{".js", ".vue", ".ts"},
		IndexName:  "index",
		ExternalPackages: []string{
			"vue", "element-plus", "@element-plus", "pinia", "axios", "dayjs",
			"@vueuse", "echarts", "marked", "dompurify", "nprogress",
		},
		AssetExtensions: []string{".css", ".scss", ".png", ".jpg", ".svg", ".gif"},
	}
}

// Result is the resolution of one reference.
type Result struct {
	Reference  models.Reference `json:"reference"`
	Target     string           `json:"target"`
	Status     Status           `json:"status"`
	Candidates []string         `json:"candidates,omitempty"`
}

// Missing reports whether no candidate existed.
func (r Result) Missing() bool {
	return r.Status == StatusMissing
}

// Resolver decides whether references point at existing files.
type Resolver struct {
	opts    Options
	exister Exister
}

// New creates a Resolver that probes candidates through exister.
func New(opts Options, exister Exister) *Resolver {
	if opts.IndexName == "" {
		opts.IndexName = "index"
	}
	return &Resolver{opts: opts, exister: exister}
}

// Resolve normalizes ref and tests its full candidate set.
func (r *Resolver) Resolve(ref models.Reference) Result {
	target := r.opts.Normalizer.Normalize(ref.Raw, ref.Origin)
	res := Result{Reference: ref, Target: target}

	if r.IsExternal(target) {
		res.Status = StatusExternal
		return res
	}
	if ref.Kind == models.KindImport && r.hasAssetExtension(target) {
		res.Status = StatusSkippedAsset
		return res
	}

	res.Candidates = r.Candidates(target)
	for _, c := range res.Candidates {
		if r.exister.Exists(c) {
			res.Status = StatusResolved
			return res
		}
	}
	res.Status = StatusMissing
	return res
}

// Candidates expands target into every path it may refer to: the path as
// written, then each implicit extension, then each implicit index file.
func (r *Resolver) Candidates(target string) []string {
	exts := r.opts.Extensions
	out := make([]string, 0, 1+2*len(exts))
	out = append(out, target)
	for _, ext := range exts {
		out = append(out, target+ext)
	}
	for _, ext := range exts {
		out = append(out, target+"/"+r.opts.IndexName+ext)
	}
	return out
}

// IsExternal reports whether target names an excluded package. Prefixes
// without a slash are matched against the leading path segment only, so
// "vue" excludes "vue-router/..." but never "src/vue/...".
func (r *Resolver) IsExternal(target string) bool {
	lead := target
	if i := strings.IndexByte(target, '/'); i >= 0 {
		lead = target[:i]
	}
	for _, p := range r.opts.ExternalPackages {
		if p == "" {
			continue
		}
		if strings.Contains(p, "/") {
			if strings.HasPrefix(target, p) {
				return true
			}
			continue
		}
		if strings.HasPrefix(lead, p) {
			return true
		}
	}
	return false
}

func (r *Resolver) hasAssetExtension(target string) bool {
	lower := strings.ToLower(target)
	for _, ext := range r.opts.AssetExtensions {
		if ext != "" && strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
