// Package display formats read-side summaries for CLI output: human labels
// for a record's resolution status and a compact summary of its provenance.
package display

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"lcbregistry/internal/model"
	"lcbregistry/internal/outcomes"
)

// ClassifyOutcome renders GetOutcomeStatus's result as the label a human
// reads in a CLI table.
func ClassifyOutcome(db *sql.DB, newAppID int64, now time.Time) (string, error) {
	status, err := outcomes.GetOutcomeStatus(db, newAppID, now)
	if err != nil {
		return "", fmt.Errorf("classify outcome for record %d: %w", newAppID, err)
	}
	switch status {
	case model.OutcomeApproved:
		return "Approved", nil
	case model.OutcomeDiscontinued:
		return "Discontinued", nil
	case model.OutcomeDataGap:
		return "Unknown (outcome no longer published upstream)", nil
	case model.OutcomePending:
		return "Pending", nil
	default:
		return "Unknown", nil
	}
}

// SummarizeProvenance renders the sources attributed to a record as a
// short, comma-separated string, e.g. "live_scrape (first_seen), co_archive
// (confirmed)".
func SummarizeProvenance(db *sql.DB, recordID int64) (string, error) {
	rows, err := db.Query(`
		SELECT s.source_type, rs.role FROM record_sources rs
		JOIN sources s ON s.id = rs.source_id
		WHERE rs.record_id = ?
		ORDER BY s.captured_at
	`, recordID)
	if err != nil {
		return "", fmt.Errorf("load sources for record %d: %w", recordID, err)
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var sourceType, role string
		if err := rows.Scan(&sourceType, &role); err != nil {
			return "", fmt.Errorf("scan source attribution: %w", err)
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", sourceType, role))
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(parts) == 0 {
		return "no recorded source", nil
	}
	return strings.Join(parts, ", "), nil
}
