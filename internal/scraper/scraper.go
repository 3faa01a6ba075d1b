// Package scraper fetches the live registry page, dedups it against the most
// recent capture by content hash, and ingests any new rows it finds.
package scraper

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lcbregistry/internal/addressvalidator"
	"lcbregistry/internal/endorsements"
	"lcbregistry/internal/locations"
	"lcbregistry/internal/model"
	"lcbregistry/internal/outcomes"
	"lcbregistry/internal/parser"
	"lcbregistry/internal/pipeline"
	"lcbregistry/internal/provenance"
)

// Options configures one scrape run.
type Options struct {
	URL         string
	SnapshotDir string
	Timeout     time.Duration
	BatchSize   int
	// Validator standardizes the locations of newly-inserted records. A nil
	// Validator skips address validation entirely.
	Validator addressvalidator.Validator
}

// Result summarizes one scrape run.
type Result struct {
	Status      model.ScrapeStatus
	Ingest      pipeline.Result
	SnapshotPath string
}

// Run fetches Options.URL, compares its content hash against the most
// recent success/unchanged scrape_log row, and — only if the content
// changed — writes a dated snapshot, parses it, and ingests every record.
// It always writes a terminal scrape_log row (success, unchanged, or error).
func Run(ctx context.Context, db *sql.DB, logger *zap.Logger, opts Options) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	startedAt := time.Now()
	logID, err := startScrapeLog(db, startedAt)
	if err != nil {
		return Result{}, fmt.Errorf("start scrape log: %w", err)
	}

	body, err := fetch(ctx, opts.URL, opts.Timeout)
	if err != nil {
		finishScrapeLogError(db, logID, err)
		return Result{}, fmt.Errorf("fetch %s: %w", opts.URL, err)
	}

	hash := contentHash(body)
	lastHash, err := lastKnownContentHash(db)
	if err != nil {
		finishScrapeLogError(db, logID, err)
		return Result{}, fmt.Errorf("load last content hash: %w", err)
	}
	if lastHash != "" && lastHash == hash {
		if err := finishScrapeLog(db, logID, model.ScrapeUnchanged, hash, "", pipeline.Result{}); err != nil {
			return Result{}, err
		}
		logger.Info("scrape unchanged", zap.String("hash", hash))
		return Result{Status: model.ScrapeUnchanged}, nil
	}

	snapshotPath, err := writeSnapshot(opts.SnapshotDir, startedAt, body)
	if err != nil {
		finishScrapeLogError(db, logID, err)
		return Result{}, fmt.Errorf("write snapshot: %w", err)
	}

	records, err := parser.ParseHTML(bytes.NewReader(body))
	if err != nil {
		finishScrapeLogError(db, logID, err)
		return Result{}, fmt.Errorf("parse scraped html: %w", err)
	}

	ingestResult, err := pipeline.IngestBatch(db, logger, records, startedAt, pipeline.IngestOptions{
		BatchSize:    opts.BatchSize,
		RunDiscovery: true,
	})
	if err != nil {
		finishScrapeLogError(db, logID, err)
		return Result{}, fmt.Errorf("ingest scraped records: %w", err)
	}

	if err := attributeSource(ctx, db, logger, logID, startedAt, opts.URL, records, opts.Validator); err != nil {
		logger.Warn("source attribution failed", zap.Error(err))
	}

	if err := finishScrapeLog(db, logID, model.ScrapeSuccess, hash, snapshotPath, ingestResult); err != nil {
		return Result{}, err
	}

	logger.Info("scrape complete",
		zap.Int("inserted", ingestResult.Inserted),
		zap.Int("skipped", ingestResult.Skipped),
		zap.Int("failed", ingestResult.Failed),
	)

	return Result{Status: model.ScrapeSuccess, Ingest: ingestResult, SnapshotPath: snapshotPath}, nil
}

func fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func contentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func lastKnownContentHash(db *sql.DB) (string, error) {
	var hash string
	err := db.QueryRow(`
		SELECT content_hash FROM scrape_log
		WHERE status IN (?, ?) AND content_hash != ''
		ORDER BY id DESC LIMIT 1
	`, string(model.ScrapeSuccess), string(model.ScrapeUnchanged)).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

func writeSnapshot(dir string, capturedAt time.Time, body []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	name := fmt.Sprintf("scrape-%s.html", capturedAt.UTC().Format("20060102-150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot file: %w", err)
	}
	return path, nil
}

func startScrapeLog(db *sql.DB, startedAt time.Time) (int64, error) {
	res, err := db.Exec(`INSERT INTO scrape_log (started_at, status) VALUES (?, ?)`, startedAt, string(model.ScrapeRunning))
	if err != nil {
		return 0, fmt.Errorf("insert scrape_log: %w", err)
	}
	return res.LastInsertId()
}

func finishScrapeLog(db *sql.DB, logID int64, status model.ScrapeStatus, hash, snapshotPath string, result pipeline.Result) error {
	_, err := db.Exec(`
		UPDATE scrape_log
		SET finished_at = CURRENT_TIMESTAMP, status = ?, content_hash = ?, snapshot_path = ?,
		    new_count = ?
		WHERE id = ?
	`, string(status), hash, nullableString(snapshotPath), result.Inserted, logID)
	if err != nil {
		return fmt.Errorf("finish scrape_log %d: %w", logID, err)
	}
	return nil
}

func finishScrapeLogError(db *sql.DB, logID int64, cause error) {
	db.Exec(`
		UPDATE scrape_log SET finished_at = CURRENT_TIMESTAMP, status = ?, error_message = ? WHERE id = ?
	`, string(model.ScrapeError), cause.Error(), logID)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// attributeSource registers the scrape as a source and links every parsed
// record found in the database to it as first_seen; for the records this
// scrape just inserted (scraped_at equal to capturedAt) it also standardizes
// their location(s) when a validator is configured and runs outcome linking.
func attributeSource(ctx context.Context, db *sql.DB, logger *zap.Logger, logID int64, capturedAt time.Time, url string, records []model.RawRecord, validator addressvalidator.Validator) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin attribution transaction: %w", err)
	}
	defer tx.Rollback()

	sourceID, err := provenance.RegisterScrapeLogSource(tx, model.SourceLiveScrape, logID, url, capturedAt)
	if err != nil {
		return err
	}

	for _, rec := range records {
		var recordID int64
		var locationID, prevLocationID sql.NullInt64
		var fresh bool
		err := tx.QueryRow(`
			SELECT id, location_id, previous_location_id, scraped_at = ? FROM records
			WHERE section = ? AND record_date = ? AND license_number = ? AND application_type = ?
		`, capturedAt, rec["section"], rec["record_date"], rec["license_number"], rec["application_type"]).Scan(&recordID, &locationID, &prevLocationID, &fresh)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("lookup ingested record: %w", err)
		}
		if err := provenance.AttachRecord(tx, recordID, sourceID, model.RoleFirstSeen); err != nil {
			return err
		}
		if !fresh {
			continue
		}
		if validator != nil {
			for _, locID := range []sql.NullInt64{locationID, prevLocationID} {
				if !locID.Valid {
					continue
				}
				if err := validateLocation(ctx, tx, validator, locID.Int64); err != nil {
					logger.Warn("address validation failed", zap.Int64("location_id", locID.Int64), zap.Error(err))
				}
			}
		}
		if _, err := outcomes.LinkNewRecord(tx, recordID); err != nil {
			return fmt.Errorf("link outcome for record %d: %w", recordID, err)
		}
	}

	if err := endorsements.MergeSeededPlaceholders(tx); err != nil {
		return fmt.Errorf("merge seeded placeholders: %w", err)
	}

	return tx.Commit()
}

// validateLocation standardizes one location's raw address through
// validator and writes the result, if any, back onto the location row. A
// validator miss (no match) or transport error is reported to the caller to
// log; the record itself is left with its un-validated location.
func validateLocation(ctx context.Context, tx *sql.Tx, validator addressvalidator.Validator, locationID int64) error {
	var raw string
	if err := tx.QueryRow(`SELECT raw_address FROM locations WHERE id = ?`, locationID).Scan(&raw); err != nil {
		return fmt.Errorf("load location %d: %w", locationID, err)
	}
	std, err := validator.Standardize(ctx, raw)
	if err != nil {
		return fmt.Errorf("standardize address: %w", err)
	}
	if std == nil {
		return nil
	}
	return locations.Standardize(tx, locationID, std.AddressLine1, std.AddressLine2, std.City, std.State, std.ZipCode)
}

// CleanupRedundantScrapes finds scrape_log rows whose status is "unchanged"
// and that are not the earliest row carrying their content hash, deletes
// their snapshot files (unless keepFiles is true) and sets their
// snapshot_path to NULL. The rows themselves are kept; removed counts them.
func CleanupRedundantScrapes(db *sql.DB, keepFiles bool) (removed int, err error) {
	rows, err := db.Query(`
		SELECT id, snapshot_path FROM scrape_log
		WHERE status = ? AND id NOT IN (
			SELECT MIN(id) FROM scrape_log WHERE content_hash != '' GROUP BY content_hash
		)
	`, string(model.ScrapeUnchanged))
	if err != nil {
		return 0, fmt.Errorf("list redundant scrape_log rows: %w", err)
	}
	type row struct {
		id           int64
		snapshotPath sql.NullString
	}
	var redundant []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.snapshotPath); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan redundant scrape_log row: %w", err)
		}
		redundant = append(redundant, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, r := range redundant {
		if !keepFiles && r.snapshotPath.Valid {
			if err := os.Remove(r.snapshotPath.String); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("remove snapshot %s: %w", r.snapshotPath.String, err)
			}
		}
		if _, err := db.Exec(`UPDATE scrape_log SET snapshot_path = NULL WHERE id = ?`, r.id); err != nil {
			return removed, fmt.Errorf("clear snapshot_path for scrape_log %d: %w", r.id, err)
		}
		removed++
	}
	return removed, nil
}
