// Package locations interns raw addresses so duplicate records never create
// orphan location rows.
package locations

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

const nbsp = " "

// normalizeRaw replaces NBSP with a plain space and trims whitespace, the
// canonical normalization applied before any lookup or insert.
func normalizeRaw(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, nbsp, " "))
}

// addressPattern matches "..., CITY, ST ZIP"; addressPatternNoZip is the
// fallback "..., CITY, ST" form. State defaults to WA when absent entirely.
var (
	addressPattern      = regexp.MustCompile(`,\s*([^,]+?),\s*([A-Z]{2})\s+(\d{5}(?:-\d{4})?)\s*$`)
	addressPatternNoZip = regexp.MustCompile(`,\s*([^,]+?),\s*([A-Z]{2})\s*$`)
)

// ParsedAddress holds the best-effort city/state/zip extracted from a raw
// address string.
type ParsedAddress struct {
	City  string
	State string
	Zip   string
}

// Parse extracts city/state/zip from a raw address using a regex cascade,
// defaulting state to WA when no state token is found.
func Parse(raw string) ParsedAddress {
	raw = normalizeRaw(raw)
	if m := addressPattern.FindStringSubmatch(raw); m != nil {
		return ParsedAddress{City: strings.TrimSpace(m[1]), State: m[2], Zip: m[3]}
	}
	if m := addressPatternNoZip.FindStringSubmatch(raw); m != nil {
		return ParsedAddress{City: strings.TrimSpace(m[1]), State: m[2]}
	}
	return ParsedAddress{State: "WA"}
}

// GetOrCreate normalizes raw, looks it up by raw_address, and inserts if
// absent. Returns (0, nil) for empty input. Parsed city/state/zip are stored
// only on insert; later address-validation writes separate std_* columns.
func GetOrCreate(tx *sql.Tx, raw string) (int64, error) {
	norm := normalizeRaw(raw)
	if norm == "" {
		return 0, nil
	}

	var id int64
	err := tx.QueryRow(`SELECT id FROM locations WHERE raw_address = ?`, norm).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup location: %w", err)
	}

	parsed := Parse(norm)
	res, err := tx.Exec(`
		INSERT INTO locations (raw_address, city, state, zip)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(raw_address) DO NOTHING
	`, norm, parsed.City, parsed.State, parsed.Zip)
	if err != nil {
		return 0, fmt.Errorf("insert location: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("location insert id: %w", err)
		}
		return id, nil
	}

	// Lost the insert race (or ON CONFLICT DO NOTHING short-circuited because
	// a concurrent duplicate-record path beat us to it) — re-read.
	if err := tx.QueryRow(`SELECT id FROM locations WHERE raw_address = ?`, norm).Scan(&id); err != nil {
		return 0, fmt.Errorf("re-read location after insert race: %w", err)
	}
	return id, nil
}

// Standardize writes the std_city/std_state/std_zip columns from an external
// address-validator result.
func Standardize(tx *sql.Tx, locationID int64, line1, line2, city, state, zip string) error {
	_, err := tx.Exec(`
		UPDATE locations
		SET address_line_1 = ?, address_line_2 = ?, std_city = ?, std_state = ?, std_zip = ?,
		    address_validated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, line1, line2, city, state, zip, locationID)
	if err != nil {
		return fmt.Errorf("standardize location %d: %w", locationID, err)
	}
	return nil
}
