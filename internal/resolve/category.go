package resolve

import (
	"fmt"
	"strings"

	"github.com/starford/refscan/internal/apperr"
	"github.com/starford/refscan/internal/models"
)

// CategoryPattern maps a directory prefix to an asset category.
type CategoryPattern struct {
	Pattern  string          `yaml:"pattern"`
	Category models.Category `yaml:"category"`
}

// DefaultCategoryPatterns returns the asset directories of a standard layout
// rooted at sourceRoot.
func DefaultCategoryPatterns(sourceRoot string) []CategoryPattern {
	base := strings.TrimSuffix(sourceRoot, "/") + "/assets/"
	return []CategoryPattern{
		{Pattern: base + "images/", Category: models.CategoryImage},
		{Pattern: base + "styles/", Category: models.CategoryStyle},
		{Pattern: base + "fonts/", Category: models.CategoryFont},
	}
}

// Classifier assigns asset paths to categories. The first matching pattern wins.
type Classifier struct {
	patterns []CategoryPattern
}

// NewClassifier validates patterns. Every category must be known and every
// known category must be covered.
func NewClassifier(patterns []CategoryPattern) (*Classifier, error) {
	covered := make(map[models.Category]bool, len(models.Categories))
	for _, p := range patterns {
		if p.Pattern == "" {
			return nil, fmt.Errorf("resolve: empty category pattern for %q", p.Category)
		}
		if !p.Category.Valid() {
			return nil, fmt.Errorf("resolve: pattern %q: %w: %q", p.Pattern, apperr.ErrUnknownCategory, p.Category)
		}
		covered[p.Category] = true
	}
	for _, c := range models.Categories {
		if !covered[c] {
			return nil, fmt.Errorf("resolve: no pattern for category %q", c)
		}
	}
	return &Classifier{patterns: patterns}, nil
}

// Classify returns the category of an asset path. A path outside every
// configured directory is a contract violation between extraction rules and
// the classifier and yields ErrUnknownCategory.
func (c *Classifier) Classify(path string) (models.Category, error) {
	for _, p := range c.patterns {
		if strings.HasPrefix(path, p.Pattern) || strings.Contains(path, "/"+p.Pattern) {
			return p.Category, nil
		}
	}
	return "", fmt.Errorf("resolve: classify %q: %w", path, apperr.ErrUnknownCategory)
}
