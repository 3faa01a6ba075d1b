// Package provenance tracks which captured source (a live scrape, a
// co_archive snapshot, or a diff-archive file) first produced or later
// confirmed each record.
package provenance

import (
	"database/sql"
	"fmt"
	"time"

	"lcbregistry/internal/model"
)

// RegisterSnapshotSource registers (idempotently) a source backed by a
// snapshot file on disk.
func RegisterSnapshotSource(tx *sql.Tx, sourceType model.SourceType, snapshotPath, url string, capturedAt time.Time) (int64, error) {
	var id int64
	err := tx.QueryRow(`
		SELECT id FROM sources WHERE source_type = ? AND snapshot_path = ?
	`, string(sourceType), snapshotPath).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup snapshot source %s: %w", snapshotPath, err)
	}

	res, err := tx.Exec(`
		INSERT INTO sources (source_type, snapshot_path, url, captured_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_type, snapshot_path) WHERE snapshot_path IS NOT NULL DO NOTHING
	`, string(sourceType), snapshotPath, url, capturedAt)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot source %s: %w", snapshotPath, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return res.LastInsertId()
	}
	if err := tx.QueryRow(`
		SELECT id FROM sources WHERE source_type = ? AND snapshot_path = ?
	`, string(sourceType), snapshotPath).Scan(&id); err != nil {
		return 0, fmt.Errorf("re-read snapshot source after insert race: %w", err)
	}
	return id, nil
}

// RegisterScrapeLogSource registers (idempotently) a source backed by one
// live scrape_log entry.
func RegisterScrapeLogSource(tx *sql.Tx, sourceType model.SourceType, scrapeLogID int64, url string, capturedAt time.Time) (int64, error) {
	var id int64
	err := tx.QueryRow(`
		SELECT id FROM sources WHERE source_type = ? AND scrape_log_id = ?
	`, string(sourceType), scrapeLogID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup scrape_log source %d: %w", scrapeLogID, err)
	}

	res, err := tx.Exec(`
		INSERT INTO sources (source_type, scrape_log_id, url, captured_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_type, scrape_log_id) WHERE snapshot_path IS NULL DO NOTHING
	`, string(sourceType), scrapeLogID, url, capturedAt)
	if err != nil {
		return 0, fmt.Errorf("insert scrape_log source %d: %w", scrapeLogID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return res.LastInsertId()
	}
	if err := tx.QueryRow(`
		SELECT id FROM sources WHERE source_type = ? AND scrape_log_id = ?
	`, string(sourceType), scrapeLogID).Scan(&id); err != nil {
		return 0, fmt.Errorf("re-read scrape_log source after insert race: %w", err)
	}
	return id, nil
}

// AttachRecord links recordID to sourceID with role, ignoring conflicts so
// repeated backfill passes stay idempotent.
func AttachRecord(tx *sql.Tx, recordID, sourceID int64, role model.SourceRole) error {
	_, err := tx.Exec(`
		INSERT INTO record_sources (record_id, source_id, role) VALUES (?, ?, ?)
		ON CONFLICT(record_id, source_id, role) DO NOTHING
	`, recordID, sourceID, string(role))
	if err != nil {
		return fmt.Errorf("attach record %d to source %d: %w", recordID, sourceID, err)
	}
	return nil
}

// BackfillFromScrapeLog walks every successful scrape_log row lacking a
// live_scrape source, registers the source, and attributes every record
// whose scraped_at matches the scrape_log's started_at as first_seen (or
// confirmed, if some other source already claims first_seen).
func BackfillFromScrapeLog(tx *sql.Tx) (registered int, attributed int, err error) {
	rows, err := tx.Query(`
		SELECT sl.id, sl.started_at, sl.snapshot_path
		FROM scrape_log sl
		WHERE sl.status = ?
		  AND NOT EXISTS (
		    SELECT 1 FROM sources s WHERE s.source_type = ? AND s.scrape_log_id = sl.id
		  )
	`, string(model.ScrapeSuccess), string(model.SourceLiveScrape))
	if err != nil {
		return 0, 0, fmt.Errorf("list unregistered scrape_log rows: %w", err)
	}
	type logRow struct {
		id           int64
		startedAt    time.Time
		snapshotPath sql.NullString
	}
	var logs []logRow
	for rows.Next() {
		var l logRow
		if err := rows.Scan(&l.id, &l.startedAt, &l.snapshotPath); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("scan scrape_log row: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, 0, err
	}
	rows.Close()

	for _, l := range logs {
		sourceID, err := RegisterScrapeLogSource(tx, model.SourceLiveScrape, l.id, "", l.startedAt)
		if err != nil {
			return registered, attributed, err
		}
		registered++

		recordRows, err := tx.Query(`SELECT id FROM records WHERE scraped_at = ?`, l.startedAt)
		if err != nil {
			return registered, attributed, fmt.Errorf("list records scraped at %v: %w", l.startedAt, err)
		}
		var recordIDs []int64
		for recordRows.Next() {
			var id int64
			if err := recordRows.Scan(&id); err != nil {
				recordRows.Close()
				return registered, attributed, fmt.Errorf("scan record id: %w", err)
			}
			recordIDs = append(recordIDs, id)
		}
		if err := recordRows.Err(); err != nil {
			recordRows.Close()
			return registered, attributed, err
		}
		recordRows.Close()

		for _, recordID := range recordIDs {
			role := model.RoleFirstSeen
			var existing int
			if err := tx.QueryRow(`SELECT count(*) FROM record_sources WHERE record_id = ? AND role = ?`,
				recordID, string(model.RoleFirstSeen)).Scan(&existing); err != nil {
				return registered, attributed, fmt.Errorf("check existing first_seen for record %d: %w", recordID, err)
			}
			if existing > 0 {
				role = model.RoleConfirmed
			}
			if err := AttachRecord(tx, recordID, sourceID, role); err != nil {
				return registered, attributed, err
			}
			attributed++
		}
	}
	return registered, attributed, nil
}
