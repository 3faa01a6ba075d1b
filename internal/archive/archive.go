// Package archive backfills history from co_archive HTML snapshots and
// co_diff_archive unified-diff files, attributing every record it ingests to
// the source file it came from.
package archive

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"

	"lcbregistry/internal/endorsements"
	"lcbregistry/internal/model"
	"lcbregistry/internal/outcomes"
	"lcbregistry/internal/parser"
	"lcbregistry/internal/provenance"
	"lcbregistry/internal/queries"
)

// snapshotNamePattern extracts the capture date from a snapshot file named
// like "scrape-20250610-080000.html" or "2025-06-10.html".
var snapshotNamePattern = regexp.MustCompile(`(\d{4})-?(\d{2})-?(\d{2})`)

// SnapshotResult summarizes one backfill-snapshots run.
type SnapshotResult struct {
	FilesProcessed int
	Inserted       int
	Skipped        int
}

// BackfillSnapshots walks every *.html file in dir (sorted oldest-first by
// filename), parses it, registers it as a co_archive source, and ingests any
// record not already present by natural key.
func BackfillSnapshots(db *sql.DB, logger *zap.Logger, dir string) (SnapshotResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return SnapshotResult{}, fmt.Errorf("read snapshot dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".html" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var result SnapshotResult
	for _, name := range names {
		path := filepath.Join(dir, name)
		capturedAt := capturedAtFromFilename(name)

		data, err := os.ReadFile(path)
		if err != nil {
			return result, fmt.Errorf("read snapshot %s: %w", path, err)
		}
		records, err := parser.ParseHTML(bytes.NewReader(data))
		if err != nil {
			return result, fmt.Errorf("parse snapshot %s: %w", path, err)
		}

		if err := ingestSnapshot(db, path, capturedAt, records, &result); err != nil {
			return result, fmt.Errorf("ingest snapshot %s: %w", path, err)
		}
		result.FilesProcessed++
		logger.Info("snapshot backfilled", zap.String("file", name), zap.Int("records", len(records)))
	}

	if err := runRepairPasses(db); err != nil {
		return result, err
	}
	return result, nil
}

func capturedAtFromFilename(name string) time.Time {
	m := snapshotNamePattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3]))
	if err != nil {
		return time.Time{}
	}
	return t
}

func ingestSnapshot(db *sql.DB, path string, capturedAt time.Time, records []model.RawRecord, result *SnapshotResult) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	sourceID, err := provenance.RegisterSnapshotSource(tx, model.SourceCOArchive, path, "", capturedAt)
	if err != nil {
		return err
	}

	for _, rec := range records {
		recordID, inserted, err := queries.InsertRecord(tx, rec, capturedAt)
		if err != nil {
			return fmt.Errorf("insert record from %s: %w", path, err)
		}
		role := model.RoleFirstSeen
		if !inserted {
			role = model.RoleConfirmed
			result.Skipped++
		} else {
			result.Inserted++
		}
		if err := provenance.AttachRecord(tx, recordID, sourceID, role); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func runRepairPasses(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin repair transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := endorsements.MergeMixedCaseEndorsements(tx); err != nil {
		return fmt.Errorf("merge mixed-case endorsements: %w", err)
	}
	if _, err := endorsements.RepairCodeNameEndorsements(tx); err != nil {
		return fmt.Errorf("repair code-name endorsements: %w", err)
	}
	if _, err := outcomes.BuildAllLinks(tx); err != nil {
		return fmt.Errorf("build outcome links: %w", err)
	}
	return tx.Commit()
}

// DiffOptions configures a backfill-diffs run.
type DiffOptions struct {
	Section  model.Section // empty means every section found in filenames
	File     string        // process only this file, if set
	Limit    int           // 0 means no limit
	DryRun   bool
}

// DiffResult summarizes one backfill-diffs run.
type DiffResult struct {
	FilesProcessed int
	Inserted       int
	Skipped        int
}

// diffSectionFromName infers a diff file's section from its name, e.g.
// "approved-2025-06-10.diff" -> approved.
func diffSectionFromName(name string) model.Section {
	for heading, section := range map[string]model.Section{
		"new_application": model.SectionNewApplication,
		"new-application":  model.SectionNewApplication,
		"approved":         model.SectionApproved,
		"discontinued":     model.SectionDiscontinued,
	} {
		if regexp.MustCompile(`(?i)` + heading).MatchString(name) {
			return section
		}
	}
	return ""
}

// BackfillDiffs walks every *.diff file in dir (sorted oldest-first by
// filename so later files' duplicates cleanly no-op against earlier
// inserts), parses each with its inferred or overridden section, and
// ingests every record not already present by natural key. DryRun parses
// and counts without writing.
func BackfillDiffs(db *sql.DB, logger *zap.Logger, dir string, opts DiffOptions) (DiffResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var names []string
	if opts.File != "" {
		names = []string{opts.File}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return DiffResult{}, fmt.Errorf("read diff dir %s: %w", dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == ".diff" {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
	}
	if opts.Limit > 0 && len(names) > opts.Limit {
		names = names[:opts.Limit]
	}

	var result DiffResult
	for _, name := range names {
		path := filepath.Join(dir, name)
		section := opts.Section
		if section == "" {
			section = diffSectionFromName(name)
		}
		if section == "" {
			logger.Warn("skipping diff with unrecognized section", zap.String("file", name))
			continue
		}

		f, err := os.Open(path)
		if err != nil {
			return result, fmt.Errorf("open diff %s: %w", path, err)
		}
		records, capturedAt, err := parser.ParseDiff(f, section)
		f.Close()
		if err != nil {
			return result, fmt.Errorf("parse diff %s: %w", path, err)
		}
		if capturedAt.IsZero() {
			capturedAt = capturedAtFromFilename(name)
		}

		if !opts.DryRun {
			if err := ingestDiff(db, path, capturedAt, records, &result); err != nil {
				return result, fmt.Errorf("ingest diff %s: %w", path, err)
			}
		} else {
			result.Inserted += len(records)
		}
		result.FilesProcessed++
		logger.Info("diff backfilled", zap.String("file", name), zap.Int("records", len(records)), zap.Bool("dry_run", opts.DryRun))
	}

	if !opts.DryRun {
		if err := runRepairPasses(db); err != nil {
			return result, err
		}
	}
	return result, nil
}

func ingestDiff(db *sql.DB, path string, capturedAt time.Time, records []model.RawRecord, result *DiffResult) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin diff transaction: %w", err)
	}
	defer tx.Rollback()

	sourceID, err := provenance.RegisterSnapshotSource(tx, model.SourceCODiffArchive, path, "", capturedAt)
	if err != nil {
		return err
	}

	for _, rec := range records {
		recordID, inserted, err := queries.InsertRecord(tx, rec, capturedAt)
		if err != nil {
			return fmt.Errorf("insert record from %s: %w", path, err)
		}
		role := model.RoleFirstSeen
		if !inserted {
			role = model.RoleConfirmed
			result.Skipped++
		} else {
			result.Inserted++
		}
		if err := provenance.AttachRecord(tx, recordID, sourceID, role); err != nil {
			return err
		}
	}

	return tx.Commit()
}
