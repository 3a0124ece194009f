package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/refscan/internal/models"
	"github.com/starford/refscan/internal/resolve"
)

// ResultRow represents a row in the results table.
type ResultRow struct {
	Source   string `json:"source"`
	Raw      string `json:"raw"`
	Target   string `json:"target"`
	Kind     string `json:"kind"`
	Category string `json:"category,omitempty"`
	Status   string `json:"status"`
	Line     int    `json:"line"`
}

// CachedReferences returns the references stored for path when its checksum
// still matches.
func (db *DB) CachedReferences(path, checksum string) ([]models.Reference, bool, error) {
	var stored string
	err := db.conn.QueryRow(`SELECT checksum FROM files WHERE path = ?`, path).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("index: lookup %s: %w", path, err)
	}
	if stored != checksum {
		return nil, false, nil
	}

	rows, err := db.conn.Query(`
		SELECT raw, kind, category, rule, line
		FROM refs WHERE source = ? ORDER BY seq
	`, path)
	if err != nil {
		return nil, false, fmt.Errorf("index: load refs %s: %w", path, err)
	}
	defer rows.Close()

	var out []models.Reference
	for rows.Next() {
		r := models.Reference{Origin: path}
		var kind, category string
		if err := rows.Scan(&r.Raw, &kind, &category, &r.Rule, &r.Line); err != nil {
			return nil, false, err
		}
		r.Kind = models.Kind(kind)
		r.Category = models.Category(category)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// StoreReferences replaces the cached references of path within a transaction.
func (db *DB) StoreReferences(path, checksum string, refs []models.Reference) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO files (path, checksum, scanned_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			scanned_at = excluded.scanned_at
	`, path, checksum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: upsert file: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM refs WHERE source = ?`, path); err != nil {
		return fmt.Errorf("index: clear refs: %w", err)
	}
	if len(refs) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO refs (source, raw, kind, category, rule, line, seq) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare ref insert: %w", err)
		}
		defer stmt.Close()
		for i, r := range refs {
			if _, err := stmt.Exec(path, r.Raw, string(r.Kind), string(r.Category), r.Rule, r.Line, i); err != nil {
				return fmt.Errorf("index: insert ref: %w", err)
			}
		}
	}

	return tx.Commit()
}

// PruneFiles removes cache entries for files not in keep.
func (db *DB) PruneFiles(keep map[string]struct{}) error {
	rows, err := db.conn.Query(`SELECT path FROM files`)
	if err != nil {
		return fmt.Errorf("index: list files: %w", err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return err
		}
		if _, ok := keep[p]; !ok {
			stale = append(stale, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range stale {
		if _, err := tx.Exec(`DELETE FROM refs WHERE source = ?`, p); err != nil {
			return fmt.Errorf("index: prune refs %s: %w", p, err)
		}
		if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, p); err != nil {
			return fmt.Errorf("index: prune file %s: %w", p, err)
		}
	}
	return tx.Commit()
}

// FileCount returns the number of cached files.
func (db *DB) FileCount() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count files: %w", err)
	}
	return n, nil
}

// ReplaceResults swaps the stored results for the given run.
func (db *DB) ReplaceResults(results []resolve.Result) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM results`); err != nil {
		return fmt.Errorf("index: clear results: %w", err)
	}
	if len(results) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO results (source, raw, target, kind, category, status, line) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare result insert: %w", err)
		}
		defer stmt.Close()
		for _, res := range results {
			ref := res.Reference
			if _, err := stmt.Exec(ref.Origin, ref.Raw, res.Target, string(ref.Kind), string(ref.Category), string(res.Status), ref.Line); err != nil {
				return fmt.Errorf("index: insert result: %w", err)
			}
		}
	}
	return tx.Commit()
}

// Importers returns every result whose normalized target equals target.
func (db *DB) Importers(target string) ([]ResultRow, error) {
	return db.queryResults(`
		SELECT source, raw, target, kind, category, status, line
		FROM results WHERE target = ?
		ORDER BY source, line
	`, target)
}

// Missing returns the missing results, optionally filtered by kind.
func (db *DB) Missing(kind string) ([]ResultRow, error) {
	if kind == "" {
		return db.queryResults(`
			SELECT source, raw, target, kind, category, status, line
			FROM results WHERE status = ?
			ORDER BY target, source, line
		`, string(resolve.StatusMissing))
	}
	return db.queryResults(`
		SELECT source, raw, target, kind, category, status, line
		FROM results WHERE status = ? AND kind = ?
		ORDER BY target, source, line
	`, string(resolve.StatusMissing), kind)
}

// DefaultSearchLimit caps search results when no limit is given.
const DefaultSearchLimit = 20

// SearchTargets returns results whose target or raw text contains query as an
// exact, case-sensitive substring.
func (db *DB) SearchTargets(query string, limit int) ([]ResultRow, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return db.queryResults(`
		SELECT source, raw, target, kind, category, status, line
		FROM results
		WHERE instr(target, ?) > 0 OR instr(raw, ?) > 0
		ORDER BY target, source, line
		LIMIT ?
	`, query, query, limit)
}

func (db *DB) queryResults(query string, args ...any) ([]ResultRow, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query results: %w", err)
	}
	defer rows.Close()

	var out []ResultRow
	for rows.Next() {
		var r ResultRow
		if err := rows.Scan(&r.Source, &r.Raw, &r.Target, &r.Kind, &r.Category, &r.Status, &r.Line); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
