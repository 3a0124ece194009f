package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/refscan/internal/models"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Scan.Output != "missing_files_report.json" {
		t.Errorf("output = %q", cfg.Scan.Output)
	}
	if cfg.Resolve.AliasPrefix != "@/" || cfg.Resolve.AliasTarget != "src/" {
		t.Errorf("alias = %q -> %q", cfg.Resolve.AliasPrefix, cfg.Resolve.AliasTarget)
	}
}

func TestScanConfig_Invalid(t *testing.T) {
	cases := map[string]func(c *Config){
		"empty source root": func(c *Config) { c.Scan.SourceRoot = "" },
		"negative workers":  func(c *Config) { c.Scan.Workers = -1 },
		"bad extension":     func(c *Config) { c.Scan.FileExtensions = []string{"vue"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestResolveConfig_Invalid(t *testing.T) {
	cases := map[string]func(c *ResolveConfig){
		"alias without target": func(c *ResolveConfig) { c.AliasTarget = "" },
		"bad extension":        func(c *ResolveConfig) { c.Extensions = []string{"js"} },
		"empty index name":     func(c *ResolveConfig) { c.IndexName = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			mutate(&cfg.Resolve)
			if err := cfg.Resolve.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestResolveConfig_Options(t *testing.T) {
	cfg := NewDefaultConfig()
	opts := cfg.Resolve.Options()
	if got := opts.Normalizer.Normalize("@/components/Header", "src/App.vue"); got != "src/components/Header" {
		t.Errorf("normalize = %q", got)
	}
	if len(opts.Extensions) != 3 || opts.IndexName != "index" {
		t.Errorf("opts = %+v", opts)
	}
}

func TestExtractAndAssets_Required(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Extract.Rules = nil
	if err := cfg.Validate(); err == nil {
		t.Error("empty rule table should fail")
	}

	cfg = NewDefaultConfig()
	cfg.Assets.Categories = nil
	if err := cfg.Validate(); err == nil {
		t.Error("empty category table should fail")
	}
}

func TestOutputPath(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Scan.BaseDir = "/project"
	got, err := cfg.Scan.OutputPath()
	if err != nil {
		t.Fatal(err)
	}
	if got != "/project/missing_files_report.json" {
		t.Errorf("path = %q", got)
	}

	cfg.Scan.Output = "/tmp/report.json"
	got, _ = cfg.Scan.OutputPath()
	if got != "/tmp/report.json" {
		t.Errorf("absolute output rewritten: %q", got)
	}
}

func TestAssetRules_FollowAliasPrefix(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Resolve.AliasPrefix = "~/"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "resolve.alias_prefix") {
		t.Fatalf("err = %v, want alias prefix mismatch", err)
	}

	for i, r := range cfg.Extract.Rules {
		cfg.Extract.Rules[i].Pattern = strings.ReplaceAll(r.Pattern, "@/", "~/")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("rules rewritten for the alias should pass: %v", err)
	}
}

func TestAssetRules_CategoryMatchesDirectory(t *testing.T) {
	cfg := NewDefaultConfig()
	for i, r := range cfg.Extract.Rules {
		if r.Name == "asset-font" {
			cfg.Extract.Rules[i].Category = models.CategoryImage
		}
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "asset-font") {
		t.Fatalf("err = %v, want category mismatch", err)
	}
}

func TestSQLiteConfig_DatabasePath(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	root := "/work/project"

	cfg := SQLiteConfig{}
	if got, err := cfg.DatabasePath(root, false); err != nil || got != "" {
		t.Errorf("one-shot default = %q, %v; want no database", got, err)
	}

	got, err := cfg.DatabasePath(root, true)
	if err != nil {
		t.Fatal(err)
	}
	cacheDir, _ := os.UserCacheDir()
	if !strings.HasPrefix(got, filepath.Join(cacheDir, "refscan")+string(filepath.Separator)) {
		t.Errorf("long-running default = %q, want under %s", got, cacheDir)
	}
	other, _ := cfg.DatabasePath("/work/other", true)
	if other == got {
		t.Error("projects share a cache database")
	}

	cfg.Path = ".refscan/cache.db"
	if got, _ := cfg.DatabasePath(root, false); got != "/work/project/.refscan/cache.db" {
		t.Errorf("explicit path = %q", got)
	}

	cfg.Disabled = true
	if got, _ := cfg.DatabasePath(root, true); got != "" {
		t.Errorf("disabled = %q", got)
	}
}
