// Package rebuild reconstructs a registry database from scratch out of its
// archived sources, and compares two databases for parity.
package rebuild

import (
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lcbregistry/internal/archive"
	"lcbregistry/internal/endorsements"
	"lcbregistry/internal/outcomes"
	"lcbregistry/internal/store"
)

// Options configures a from-scratch rebuild.
type Options struct {
	OutputPath string
	DiffDir    string
	SnapshotDir string
}

// Result summarizes a rebuild run.
type Result struct {
	Diffs     archive.DiffResult
	Snapshots archive.SnapshotResult
	Discovered int
	Linked     int
}

// FromSources builds a fresh database at opts.OutputPath in four phases:
// diff-archive ingestion (earliest available history), snapshot-archive
// ingestion (fills gaps the diffs don't cover), endorsement code discovery
// and repair, and finally outcome linking — each phase depends on records
// the previous phase introduced.
func FromSources(logger *zap.Logger, opts Options) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := store.Open(opts.OutputPath, logger)
	if err != nil {
		return Result{}, fmt.Errorf("open rebuild target %s: %w", opts.OutputPath, err)
	}
	defer db.Close()

	var result Result

	if opts.DiffDir != "" {
		diffResult, err := archive.BackfillDiffs(db.Conn(), logger, opts.DiffDir, archive.DiffOptions{})
		if err != nil {
			return result, fmt.Errorf("backfill diffs: %w", err)
		}
		result.Diffs = diffResult
	}

	if opts.SnapshotDir != "" {
		snapshotResult, err := archive.BackfillSnapshots(db.Conn(), logger, opts.SnapshotDir)
		if err != nil {
			return result, fmt.Errorf("backfill snapshots: %w", err)
		}
		result.Snapshots = snapshotResult
	}

	tx, err := db.Conn().Begin()
	if err != nil {
		return result, fmt.Errorf("begin discovery transaction: %w", err)
	}
	discovered, err := endorsements.DiscoverCodeMappings(tx)
	if err != nil {
		tx.Rollback()
		return result, fmt.Errorf("discover code mappings: %w", err)
	}
	if _, err := endorsements.RepairCodeNameEndorsements(tx); err != nil {
		tx.Rollback()
		return result, fmt.Errorf("repair code-name endorsements: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit discovery: %w", err)
	}
	result.Discovered = discovered

	tx, err = db.Conn().Begin()
	if err != nil {
		return result, fmt.Errorf("begin link transaction: %w", err)
	}
	linked, err := outcomes.BuildAllLinks(tx)
	if err != nil {
		tx.Rollback()
		return result, fmt.Errorf("build outcome links: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit outcome links: %w", err)
	}
	result.Linked = linked

	return result, nil
}

// CompareResult is per-section parity between two databases.
type CompareResult struct {
	Section      string
	CountA       int
	CountB       int
	MissingInB   []string // natural keys present in A, absent from B
	ExtraInB     []string // natural keys present in B, absent from A
}

const sampleLimit = 20

// CompareDatabases reports, for each section, the row counts in a and b and
// a bounded sample of natural keys present in one but not the other. Each
// section's comparison reads and diffs its own key set independently, so
// sections run concurrently.
func CompareDatabases(a, b *sql.DB) ([]CompareResult, error) {
	sections := []string{"new_application", "approved", "discontinued"}
	results := make([]CompareResult, len(sections))

	g := new(errgroup.Group)
	var mu sync.Mutex
	for i, section := range sections {
		i, section := i, section
		g.Go(func() error {
			r, err := compareSection(a, b, section)
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func compareSection(a, b *sql.DB, section string) (CompareResult, error) {
	countA, err := countBySection(a, section)
	if err != nil {
		return CompareResult{}, fmt.Errorf("count section %s in a: %w", section, err)
	}
	countB, err := countBySection(b, section)
	if err != nil {
		return CompareResult{}, fmt.Errorf("count section %s in b: %w", section, err)
	}

	keysA, err := naturalKeysBySection(a, section)
	if err != nil {
		return CompareResult{}, fmt.Errorf("load keys for %s from a: %w", section, err)
	}
	keysB, err := naturalKeysBySection(b, section)
	if err != nil {
		return CompareResult{}, fmt.Errorf("load keys for %s from b: %w", section, err)
	}

	setB := make(map[string]bool, len(keysB))
	for _, k := range keysB {
		setB[k] = true
	}
	setA := make(map[string]bool, len(keysA))
	for _, k := range keysA {
		setA[k] = true
	}

	var missingInB, extraInB []string
	for _, k := range keysA {
		if !setB[k] {
			missingInB = append(missingInB, k)
			if len(missingInB) >= sampleLimit {
				break
			}
		}
	}
	for _, k := range keysB {
		if !setA[k] {
			extraInB = append(extraInB, k)
			if len(extraInB) >= sampleLimit {
				break
			}
		}
	}

	return CompareResult{
		Section:    section,
		CountA:     countA,
		CountB:     countB,
		MissingInB: missingInB,
		ExtraInB:   extraInB,
	}, nil
}

func countBySection(db *sql.DB, section string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT count(*) FROM records WHERE section = ?`, section).Scan(&n)
	return n, err
}

func naturalKeysBySection(db *sql.DB, section string) ([]string, error) {
	rows, err := db.Query(`SELECT record_date, license_number, application_type FROM records WHERE section = ?`, section)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var date, license, appType string
		if err := rows.Scan(&date, &license, &appType); err != nil {
			return nil, err
		}
		keys = append(keys, fmt.Sprintf("%s|%s|%s", date, license, appType))
	}
	return keys, rows.Err()
}
