package index

import (
	"github.com/starford/refscan/internal/resolve"
	"github.com/starford/refscan/internal/scan"
)

// ReferenceIndex defines the interface for reference cache and result queries.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type ReferenceIndex interface {
	scan.Cache
	ReplaceResults(results []resolve.Result) error
	Importers(target string) ([]ResultRow, error)
	Missing(kind string) ([]ResultRow, error)
	SearchTargets(query string, limit int) ([]ResultRow, error)
	FileCount() (int, error)
	Close() error
}

// Verify *DB satisfies ReferenceIndex at compile time.
var _ ReferenceIndex = (*DB)(nil)
