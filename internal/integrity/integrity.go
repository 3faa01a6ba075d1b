// Package integrity audits a registry database for the anomalies that
// accumulate across repeated ingestion and repair passes, and optionally
// fixes the ones with an unambiguous remedy.
package integrity

import (
	"database/sql"
	"fmt"

	"lcbregistry/internal/entities"
	"lcbregistry/internal/endorsements"
)

// Finding is one detected anomaly.
type Finding struct {
	Check   string
	Detail  string
	Fixed   bool
}

// Report is the result of a full integrity run.
type Report struct {
	Findings []Finding
}

// RunAll runs every check in order, optionally applying each check's fix
// before moving to the next. Orphan-location and broken-reference fixes run
// as individual autocommit statements, re-enrichment runs one transaction
// per record, and code discovery and entity merging each run in one
// transaction.
func RunAll(db *sql.DB, fix bool) (Report, error) {
	var report Report

	checks := []func(*sql.DB, bool) ([]Finding, error){
		checkOrphanLocations,
		checkBrokenRecordLocations,
		checkUnenrichedRecords,
		checkEndorsementAnomalies,
		checkEntityCaseDuplicates,
	}
	for _, check := range checks {
		findings, err := check(db, fix)
		if err != nil {
			return report, err
		}
		report.Findings = append(report.Findings, findings...)
	}
	return report, nil
}

// checkOrphanLocations finds locations rows no record references.
func checkOrphanLocations(db *sql.DB, fix bool) ([]Finding, error) {
	rows, err := db.Query(`
		SELECT l.id, l.raw_address FROM locations l
		WHERE NOT EXISTS (SELECT 1 FROM records r WHERE r.location_id = l.id OR r.previous_location_id = l.id)
	`)
	if err != nil {
		return nil, fmt.Errorf("query orphan locations: %w", err)
	}
	type orphan struct {
		id  int64
		raw string
	}
	var orphans []orphan
	for rows.Next() {
		var o orphan
		if err := rows.Scan(&o.id, &o.raw); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan orphan location: %w", err)
		}
		orphans = append(orphans, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var findings []Finding
	for _, o := range orphans {
		f := Finding{Check: "orphan_location", Detail: fmt.Sprintf("location %d (%s) is referenced by no record", o.id, o.raw)}
		if fix {
			if _, err := db.Exec(`DELETE FROM locations WHERE id = ?`, o.id); err != nil {
				return findings, fmt.Errorf("delete orphan location %d: %w", o.id, err)
			}
			f.Fixed = true
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// checkBrokenRecordLocations finds records whose location_id or
// previous_location_id points at a location row that no longer exists — an
// integrity violation the foreign key pragma should already prevent, but
// worth confirming after a manual data repair.
func checkBrokenRecordLocations(db *sql.DB, fix bool) ([]Finding, error) {
	rows, err := db.Query(`
		SELECT r.id FROM records r
		WHERE (r.location_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM locations l WHERE l.id = r.location_id))
		   OR (r.previous_location_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM locations l WHERE l.id = r.previous_location_id))
	`)
	if err != nil {
		return nil, fmt.Errorf("query broken record locations: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan record id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var findings []Finding
	for _, id := range ids {
		f := Finding{Check: "broken_record_location", Detail: fmt.Sprintf("record %d references a missing location", id)}
		if fix {
			if _, err := db.Exec(`UPDATE records SET location_id = NULL, previous_location_id = NULL WHERE id = ?`, id); err != nil {
				return findings, fmt.Errorf("clear broken location refs on record %d: %w", id, err)
			}
			f.Fixed = true
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// checkUnenrichedRecords finds non-empty license_type fields with no linked
// endorsement — a sign ProcessRecord was never run for that row (e.g. a
// record inserted by an older pipeline version).
func checkUnenrichedRecords(db *sql.DB, fix bool) ([]Finding, error) {
	rows, err := db.Query(`
		SELECT r.id, r.license_type FROM records r
		WHERE r.license_type != ''
		  AND NOT EXISTS (SELECT 1 FROM record_endorsements re WHERE re.record_id = r.id)
	`)
	if err != nil {
		return nil, fmt.Errorf("query unenriched records: %w", err)
	}
	type row struct {
		id          int64
		licenseType string
	}
	var unenriched []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.licenseType); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan unenriched record: %w", err)
		}
		unenriched = append(unenriched, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var findings []Finding
	for _, r := range unenriched {
		f := Finding{Check: "unenriched_record", Detail: fmt.Sprintf("record %d has license_type %q but no endorsement links", r.id, r.licenseType)}
		if fix {
			tx, err := db.Begin()
			if err != nil {
				return findings, fmt.Errorf("begin enrich transaction: %w", err)
			}
			if err := endorsements.ProcessRecord(tx, r.id, r.licenseType); err != nil {
				tx.Rollback()
				return findings, fmt.Errorf("re-enrich record %d: %w", r.id, err)
			}
			if err := tx.Commit(); err != nil {
				return findings, fmt.Errorf("commit enrich for record %d: %w", r.id, err)
			}
			f.Fixed = true
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// checkEndorsementAnomalies finds placeholder endorsements (purely numeric
// name). With fix, it runs code discovery once; its findings are not marked
// fixed. endorsement_codes rows pointing at endorsements that no longer
// exist are not checked.
func checkEndorsementAnomalies(db *sql.DB, fix bool) ([]Finding, error) {
	rows, err := db.Query(`
		SELECT e.id, e.name FROM endorsements e WHERE e.name GLOB '[0-9]*' AND e.name NOT GLOB '*[^0-9]*'
	`)
	if err != nil {
		return nil, fmt.Errorf("query placeholder endorsements: %w", err)
	}
	type row struct {
		id   int64
		name string
	}
	var placeholders []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan placeholder endorsement: %w", err)
		}
		placeholders = append(placeholders, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var findings []Finding
	for _, p := range placeholders {
		findings = append(findings, Finding{
			Check:  "placeholder_endorsement",
			Detail: fmt.Sprintf("endorsement %d (code %s) has never resolved to a real name", p.id, p.name),
		})
	}

	if fix {
		tx, err := db.Begin()
		if err != nil {
			return findings, fmt.Errorf("begin discovery transaction: %w", err)
		}
		if _, err := endorsements.DiscoverCodeMappings(tx); err != nil {
			tx.Rollback()
			return findings, fmt.Errorf("discover code mappings: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return findings, fmt.Errorf("commit discovery: %w", err)
		}
	}
	return findings, nil
}

// checkEntityCaseDuplicates finds entities whose stored name differs from
// its cleaned form — a sign MergeDuplicates hasn't run since this entity was
// inserted by an older code path.
func checkEntityCaseDuplicates(db *sql.DB, fix bool) ([]Finding, error) {
	rows, err := db.Query(`SELECT id, name FROM entities`)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	type row struct {
		id   int64
		name string
	}
	var dirty []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		if entities.Clean(r.name) != r.name {
			dirty = append(dirty, r)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var findings []Finding
	for _, d := range dirty {
		findings = append(findings, Finding{
			Check:  "entity_case_duplicate",
			Detail: fmt.Sprintf("entity %d name %q is not in cleaned form", d.id, d.name),
		})
	}

	if fix && len(dirty) > 0 {
		tx, err := db.Begin()
		if err != nil {
			return findings, fmt.Errorf("begin merge transaction: %w", err)
		}
		merged, err := entities.MergeDuplicates(tx)
		if err != nil {
			tx.Rollback()
			return findings, fmt.Errorf("merge duplicate entities: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return findings, fmt.Errorf("commit entity merge: %w", err)
		}
		for i := range findings {
			if i < merged {
				findings[i].Fixed = true
			}
		}
	}
	return findings, nil
}
