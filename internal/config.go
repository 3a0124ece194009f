package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/refscan/internal/extract"
	"github.com/starford/refscan/internal/models"
	"github.com/starford/refscan/internal/report"
	"github.com/starford/refscan/internal/resolve"
	"github.com/starford/refscan/internal/watcher"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

var extensionRule = validation.Match(regexp.MustCompile(`^\.[A-Za-z0-9]+$`)).
	Error("must be a file extension such as .vue")

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Scan    ScanConfig        `yaml:"scan"`
	Resolve ResolveConfig     `yaml:"resolve"`
	Extract ExtractConfig     `yaml:"extract"`
	Assets  AssetsConfig      `yaml:"assets"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Watch   WatchConfig       `yaml:"watch"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.Scan, &c.Resolve, &c.Extract, &c.Assets, &c.Watch, &c.Auth,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return c.validateAssetRules()
}

// validateAssetRules checks that the literal prefix of every asset rule
// normalizes into an assets.categories directory of the rule's category.
// A mismatch would make every scan that finds such an asset fail.
func (c *Config) validateAssetRules() error {
	cls, err := resolve.NewClassifier(c.Assets.Categories)
	if err != nil {
		return fmt.Errorf("assets: %w", err)
	}
	norm := c.Resolve.Options().Normalizer
	for i, r := range c.Extract.Rules {
		if r.Kind != models.KindAsset {
			continue
		}
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("rule[%d]", i)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("extract: %s: compile pattern: %w", name, err)
		}
		prefix, _ := re.LiteralPrefix()
		if prefix == "" || strings.HasPrefix(prefix, ".") {
			continue
		}
		target := norm.Normalize(prefix, "")
		cat, err := cls.Classify(target)
		if err != nil {
			return fmt.Errorf("extract: %s: assets under %q normalize to %q, outside every assets.categories directory (check resolve.alias_prefix)",
				name, prefix, target)
		}
		if r.Category != "" && cat != r.Category {
			return fmt.Errorf("extract: %s: tagged %s but %q is a %s directory", name, r.Category, target, cat)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ScanConfig describes which tree is scanned and where the report goes.
type ScanConfig struct {
	// BaseDir is the project directory; every other path is relative to it.
	BaseDir string `yaml:"base_dir"`
	// SourceRoot is the directory walked for references.
	SourceRoot    string `yaml:"source_root"`
	Output        string `yaml:"output"`
	FailOnMissing bool   `yaml:"fail_on_missing"`
	Workers       int    `yaml:"workers"`
	// FileExtensions limits the walked files. Empty means every extension
	// named by an extraction rule.
	FileExtensions []string `yaml:"file_extensions"`
	SkipDirs       []string `yaml:"skip_dirs"`
	Ignore         []string `yaml:"ignore"`
}

// Validate validates the scan configuration.
func (c *ScanConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseDir, validation.Required),
		validation.Field(&c.SourceRoot, validation.Required),
		validation.Field(&c.Output, validation.Required),
		validation.Field(&c.Workers, validation.Min(0)),
		validation.Field(&c.FileExtensions, validation.Each(extensionRule)),
	)
}

// OutputPath returns the absolute report path.
func (c *ScanConfig) OutputPath() (string, error) {
	return underBase(c.BaseDir, c.Output)
}

// ResolveConfig holds the import resolution conventions.
type ResolveConfig struct {
	AliasPrefix      string   `yaml:"alias_prefix"`
	AliasTarget      string   `yaml:"alias_target"`
	Extensions       []string `yaml:"extensions"`
	IndexName        string   `yaml:"index_name"`
	ExternalPackages []string `yaml:"external_packages"`
	AssetExtensions  []string `yaml:"asset_extensions"`
}

// Validate validates the resolve configuration.
func (c *ResolveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AliasTarget, validation.When(c.AliasPrefix != "", validation.Required)),
		validation.Field(&c.Extensions, validation.Each(extensionRule)),
		validation.Field(&c.IndexName, validation.Required),
		validation.Field(&c.AssetExtensions, validation.Each(extensionRule)),
	)
}

// Options converts the section into resolver options.
func (c *ResolveConfig) Options() resolve.Options {
	return resolve.Options{
		Normalizer:       resolve.Normalizer{AliasPrefix: c.AliasPrefix, AliasTarget: c.AliasTarget},
		Extensions:       c.Extensions,
		IndexName:        c.IndexName,
		ExternalPackages: c.ExternalPackages,
		AssetExtensions:  c.AssetExtensions,
	}
}

// ExtractConfig holds the extraction rule table.
type ExtractConfig struct {
	Rules []extract.Rule `yaml:"rules"`
}

// Validate validates the extract configuration. Rule patterns are compiled
// and checked when the extractor is built.
func (c *ExtractConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Rules, validation.Required),
	)
}

// AssetsConfig maps asset directories to categories.
type AssetsConfig struct {
	Categories []resolve.CategoryPattern `yaml:"categories"`
}

// Validate validates the assets configuration.
func (c *AssetsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Categories, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
//
// The database caches extracted references and indexes the latest results.
// When Path is empty, one-shot scans run without it and the long-running
// modes keep it in the user cache directory, keyed by project.
type SQLiteConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// DatabasePath returns the absolute database path for a project rooted at
// root, or "" when the database is not used.
func (c *SQLiteConfig) DatabasePath(root string, longRunning bool) (string, error) {
	switch {
	case c.Disabled:
		return "", nil
	case c.Path != "":
		return underBase(root, c.Path)
	case !longRunning:
		return "", nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("sqlite: no user cache dir: %w", err)
	}
	sum := sha256.Sum256([]byte(root))
	return filepath.Join(dir, "refscan", hex.EncodeToString(sum[:8])+".db"), nil
}

// WatchConfig holds file watcher configuration.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a Config for a Vue project laid out under ./src.
func NewDefaultConfig() *Config {
	res := resolve.DefaultOptions()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Scan: ScanConfig{
			BaseDir:    ".",
			SourceRoot: "src",
			Output:     report.DefaultFileName,
			SkipDirs:   []string{"node_modules", ".git"},
		},
		Resolve: ResolveConfig{
			AliasPrefix:      res.Normalizer.AliasPrefix,
			AliasTarget:      res.Normalizer.AliasTarget,
			Extensions:       res.Extensions,
			IndexName:        res.IndexName,
			ExternalPackages: res.ExternalPackages,
			AssetExtensions:  res.AssetExtensions,
		},
		Extract: ExtractConfig{
			Rules: extract.DefaultRules(),
		},
		Assets: AssetsConfig{
			Categories: resolve.DefaultCategoryPatterns("src"),
		},
		Watch: WatchConfig{
			Debounce: watcher.DefaultDebounce,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

// underBase resolves p against base unless it is already absolute.
func underBase(base, p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	return filepath.Abs(p)
}
