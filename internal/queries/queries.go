// Package queries implements the write and read paths shared by every
// ingestion source: natural-key deduplicated insert, hydration of a record
// with its endorsements/entities, and full-text search.
package queries

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"lcbregistry/internal/endorsements"
	"lcbregistry/internal/entities"
	"lcbregistry/internal/locations"
	"lcbregistry/internal/model"
)

// rawKeys are the field names InsertRecord expects in a model.RawRecord.
const (
	keySection             = "section"
	keyRecordDate           = "record_date"
	keyBusinessName         = "business_name"
	keyPreviousBusinessName = "previous_business_name"
	keyApplicants           = "applicants"
	keyPreviousApplicants   = "previous_applicants"
	keyLicenseType          = "license_type"
	keyApplicationType      = "application_type"
	keyLicenseNumber        = "license_number"
	keyContactPhone         = "contact_phone"
	keyLocation             = "location"
	keyPreviousLocation     = "previous_location"
)

// InsertRecord resolves locations, cleans names, links entities and
// endorsements, and inserts the record row — or returns the existing row's
// id unchanged if its natural key already exists. Every write happens inside
// tx, left to the caller to commit.
func InsertRecord(tx *sql.Tx, raw model.RawRecord, scrapedAt time.Time) (recordID int64, inserted bool, err error) {
	section := raw[keySection]
	recordDate := raw[keyRecordDate]
	licenseNumber := strings.TrimSpace(raw[keyLicenseNumber])
	applicationType := strings.TrimSpace(raw[keyApplicationType])

	var existingID int64
	err = tx.QueryRow(`
		SELECT id FROM records
		WHERE section = ? AND record_date = ? AND license_number = ? AND application_type = ?
	`, section, recordDate, licenseNumber, applicationType).Scan(&existingID)
	if err == nil {
		return existingID, false, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("natural-key lookup: %w", err)
	}

	locationID, err := locations.GetOrCreate(tx, raw[keyLocation])
	if err != nil {
		return 0, false, fmt.Errorf("resolve location: %w", err)
	}
	prevLocationID, err := locations.GetOrCreate(tx, raw[keyPreviousLocation])
	if err != nil {
		return 0, false, fmt.Errorf("resolve previous location: %w", err)
	}

	cleanedBusiness := entities.Clean(raw[keyBusinessName])
	cleanedPrevBusiness := entities.Clean(raw[keyPreviousBusinessName])
	cleanedApplicants := entities.CleanApplicants(raw[keyApplicants])
	cleanedPrevApplicants := entities.CleanApplicants(raw[keyPreviousApplicants])

	res, err := tx.Exec(`
		INSERT INTO records (
			section, record_date, business_name, previous_business_name,
			applicants, previous_applicants, license_type, application_type,
			license_number, contact_phone, location_id, previous_location_id,
			scraped_at, raw_business_name, raw_previous_business_name,
			raw_applicants, raw_previous_applicants
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(section, record_date, license_number, application_type) DO NOTHING
	`,
		section, recordDate, cleanedBusiness, cleanedPrevBusiness,
		cleanedApplicants, cleanedPrevApplicants, raw[keyLicenseType], applicationType,
		licenseNumber, strings.TrimSpace(raw[keyContactPhone]), nullableID(locationID), nullableID(prevLocationID),
		scrapedAt, raw[keyBusinessName], raw[keyPreviousBusinessName],
		raw[keyApplicants], raw[keyPreviousApplicants],
	)
	if err != nil {
		return 0, false, fmt.Errorf("insert record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost an insert race against a concurrent identical natural key.
		if err := tx.QueryRow(`
			SELECT id FROM records
			WHERE section = ? AND record_date = ? AND license_number = ? AND application_type = ?
		`, section, recordDate, licenseNumber, applicationType).Scan(&existingID); err != nil {
			return 0, false, fmt.Errorf("re-read record after insert race: %w", err)
		}
		return existingID, false, nil
	}

	recordID, err = res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("record insert id: %w", err)
	}

	if err := entities.LinkApplicants(tx, recordID, cleanedApplicants, model.EntityRoleApplicant); err != nil {
		return 0, false, fmt.Errorf("link applicants: %w", err)
	}
	if err := entities.LinkApplicants(tx, recordID, cleanedPrevApplicants, model.EntityRolePreviousApplicant); err != nil {
		return 0, false, fmt.Errorf("link previous applicants: %w", err)
	}
	if err := endorsements.ProcessRecord(tx, recordID, raw[keyLicenseType]); err != nil {
		return 0, false, fmt.Errorf("process endorsements: %w", err)
	}

	return recordID, true, nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// GetByNaturalKey returns the record id for a natural key, or
// sql.ErrNoRows if none exists.
func GetByNaturalKey(tx *sql.Tx, key model.NaturalKey) (int64, error) {
	var id int64
	err := tx.QueryRow(`
		SELECT id FROM records
		WHERE section = ? AND record_date = ? AND license_number = ? AND application_type = ?
	`, string(key.Section), key.RecordDate, key.LicenseNumber, key.ApplicationType).Scan(&id)
	return id, err
}

// RecordDetail is a fully hydrated record: its row plus the endorsement and
// entity names attached to it.
type RecordDetail struct {
	model.Record
	Endorsements []string
	Applicants   []string
}

// Hydrate loads a record by id along with its linked endorsement and
// applicant-entity names.
func Hydrate(db *sql.DB, recordID int64) (*RecordDetail, error) {
	var d RecordDetail
	var locationID, prevLocationID sql.NullInt64
	err := db.QueryRow(`
		SELECT id, section, record_date, business_name, previous_business_name,
		       applicants, previous_applicants, license_type, application_type,
		       license_number, contact_phone, location_id, previous_location_id,
		       scraped_at, created_at, raw_business_name, raw_previous_business_name,
		       raw_applicants, raw_previous_applicants
		FROM records WHERE id = ?
	`, recordID).Scan(
		&d.ID, &d.Section, &d.RecordDate, &d.BusinessName, &d.PreviousBusinessName,
		&d.Applicants, &d.PreviousApplicants, &d.LicenseType, &d.ApplicationType,
		&d.LicenseNumber, &d.ContactPhone, &locationID, &prevLocationID,
		&d.ScrapedAt, &d.CreatedAt, &d.RawBusinessName, &d.RawPreviousBusiness,
		&d.RawApplicants, &d.RawPreviousApplicants,
	)
	if err != nil {
		return nil, fmt.Errorf("load record %d: %w", recordID, err)
	}
	if locationID.Valid {
		d.LocationID = &locationID.Int64
	}
	if prevLocationID.Valid {
		d.PreviousLocationID = &prevLocationID.Int64
	}

	endorsementRows, err := db.Query(`
		SELECT e.name FROM endorsements e
		JOIN record_endorsements re ON re.endorsement_id = e.id
		WHERE re.record_id = ? ORDER BY e.name
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("load endorsements for record %d: %w", recordID, err)
	}
	defer endorsementRows.Close()
	for endorsementRows.Next() {
		var name string
		if err := endorsementRows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan endorsement: %w", err)
		}
		d.Endorsements = append(d.Endorsements, name)
	}
	if err := endorsementRows.Err(); err != nil {
		return nil, err
	}

	applicantRows, err := db.Query(`
		SELECT en.name FROM entities en
		JOIN record_entities re ON re.entity_id = en.id
		WHERE re.record_id = ? AND re.role = ?
		ORDER BY re.position
	`, recordID, string(model.EntityRoleApplicant))
	if err != nil {
		return nil, fmt.Errorf("load applicants for record %d: %w", recordID, err)
	}
	defer applicantRows.Close()
	for applicantRows.Next() {
		var name string
		if err := applicantRows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan applicant: %w", err)
		}
		d.Applicants = append(d.Applicants, name)
	}
	return &d, applicantRows.Err()
}

// SearchResult is one row of a full-text search hit. record_search_fts is
// contentless, so snippet() has no stored text to quote and Snippet is empty.
type SearchResult struct {
	RecordID int64
	Snippet  string
}

// Search runs a full-text query against record_search_fts, returning the
// matching record ids in rank order, capped at limit.
func Search(db *sql.DB, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT rowid, snippet(record_search_fts, -1, '[', ']', '...', 10)
		FROM record_search_fts
		WHERE record_search_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("full-text search %q: %w", query, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var snippet sql.NullString
		if err := rows.Scan(&r.RecordID, &snippet); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		r.Snippet = snippet.String
		results = append(results, r)
	}
	return results, rows.Err()
}
