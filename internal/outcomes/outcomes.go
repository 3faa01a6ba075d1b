// Package outcomes links new_application records to the approved or
// discontinued record that resolves them, and classifies a new_application's
// resolution status for display.
package outcomes

import (
	"database/sql"
	"fmt"
	"time"

	"lcbregistry/internal/model"
)

// toleranceDays bounds how far apart (in record_date) a new_application and
// its candidate outcome may be and still be considered a match. Outcome
// dates may legitimately precede the notification date by a few days
// (weekend offsets), so the window is symmetric.
const toleranceDays = 7

// dataGapCutoff is the date after which the upstream registry stopped
// publishing NEW APPLICATION approvals. A NEW APPLICATION record dated after
// this with no outcome link is classified data_gap rather than pending or
// unknown.
var dataGapCutoff = mustParseDate("2025-05-12")

// pendingWindowDays is how long a linkable record can go unresolved before
// display calls it "pending" rather than "unknown".
const pendingWindowDays = 180

const (
	appTypeNewApplication = "NEW APPLICATION"
	appTypeDiscLiquor     = "DISC. LIQUOR SALES"
	appTypeDiscontinued   = "DISCONTINUED"
)

// approvalFamily is the set of new_application application_type values that
// resolve against an approved-section row carrying the same
// application_type.
var approvalFamily = map[string]bool{
	"RENEWAL":                     true,
	appTypeNewApplication:         true,
	"ASSUMPTION":                  true,
	"ADDED/CHANGE OF CLASS":       true,
	"CHANGE OF CORPORATE OFFICER": true,
	"CHANGE OF LOCATION":          true,
	"RESUME BUSINESS":             true,
	"IN LIEU":                     true,
}

func mustParseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// candidate is a record considered as a forward or backward match target.
type candidate struct {
	id         int64
	recordDate time.Time
}

// outcomeTarget describes where a new_application record's outcome would be
// found: which section and which application_type an outcome row must carry
// to resolve it. found is false for non-linkable application_types.
func outcomeTarget(applicationType string) (section model.Section, outcomeAppType string, found bool) {
	if approvalFamily[applicationType] {
		return model.SectionApproved, applicationType, true
	}
	if applicationType == appTypeDiscLiquor {
		return model.SectionDiscontinued, appTypeDiscontinued, true
	}
	return "", "", false
}

// applicationTarget is outcomeTarget's inverse: given an outcome row's
// section and application_type, what new_application application_type
// resolves to it.
func applicationTarget(section model.Section, applicationType string) (newAppType string, found bool) {
	switch section {
	case model.SectionApproved:
		if approvalFamily[applicationType] {
			return applicationType, true
		}
	case model.SectionDiscontinued:
		if applicationType == appTypeDiscontinued {
			return appTypeDiscLiquor, true
		}
	}
	return "", false
}

// BuildAllLinks clears record_links and rebuilds it from scratch: for every
// linkable new_application record it finds the bidirectional nearest-
// neighbor match (see forwardBestOutcome / backwardBestApp) and inserts one
// row, high confidence iff the two directions agree.
func BuildAllLinks(tx *sql.Tx) (linked int, err error) {
	if _, err := tx.Exec(`DELETE FROM record_links`); err != nil {
		return 0, fmt.Errorf("clear record_links: %w", err)
	}

	rows, err := tx.Query(`SELECT id, application_type FROM records WHERE section = ?`, string(model.SectionNewApplication))
	if err != nil {
		return 0, fmt.Errorf("list new_application records: %w", err)
	}
	var appIDs []int64
	for rows.Next() {
		var id int64
		var appType string
		if err := rows.Scan(&id, &appType); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan new_application row: %w", err)
		}
		if _, _, ok := outcomeTarget(appType); ok {
			appIDs = append(appIDs, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, id := range appIDs {
		ok, err := LinkNewRecord(tx, id)
		if err != nil {
			return linked, err
		}
		if ok {
			linked++
		}
	}
	return linked, nil
}

// LinkNewRecord finds and inserts the record_links row for recordID,
// whichever side of the application/outcome pair it is. It returns false if
// recordID's application_type isn't linkable or no candidate partner exists
// within tolerance.
func LinkNewRecord(tx *sql.Tx, recordID int64) (bool, error) {
	var section, applicationType string
	err := tx.QueryRow(`SELECT section, application_type FROM records WHERE id = ?`, recordID).Scan(&section, &applicationType)
	if err != nil {
		return false, fmt.Errorf("load record %d: %w", recordID, err)
	}

	switch model.Section(section) {
	case model.SectionNewApplication:
		return linkFromApplication(tx, recordID)
	case model.SectionApproved, model.SectionDiscontinued:
		return linkFromOutcome(tx, recordID)
	default:
		return false, nil
	}
}

func linkFromApplication(tx *sql.Tx, appID int64) (bool, error) {
	forward, found, err := forwardBestOutcome(tx, appID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	backward, backFound, err := backwardBestApp(tx, forward.id)
	if err != nil {
		return false, err
	}
	confidence := model.ConfidenceMedium
	if backFound && backward.id == appID {
		confidence = model.ConfidenceHigh
	}
	return true, insertLink(tx, appID, forward.id, confidence, forward.recordDate)
}

func linkFromOutcome(tx *sql.Tx, outcomeID int64) (bool, error) {
	backward, found, err := backwardBestApp(tx, outcomeID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	forward, forwardFound, err := forwardBestOutcome(tx, backward.id)
	if err != nil {
		return false, err
	}
	confidence := model.ConfidenceMedium
	if forwardFound && forward.id == outcomeID {
		confidence = model.ConfidenceHigh
	}
	var outcomeDateStr string
	if err := tx.QueryRow(`SELECT record_date FROM records WHERE id = ?`, outcomeID).Scan(&outcomeDateStr); err != nil {
		return false, fmt.Errorf("load outcome %d date: %w", outcomeID, err)
	}
	outcomeDate, err := time.Parse("2006-01-02", outcomeDateStr)
	if err != nil {
		return false, fmt.Errorf("parse outcome date %q: %w", outcomeDateStr, err)
	}
	return true, insertLink(tx, backward.id, outcomeID, confidence, outcomeDate)
}

func insertLink(tx *sql.Tx, appID, outcomeID int64, confidence model.LinkConfidence, outcomeDate time.Time) error {
	var appDateStr string
	if err := tx.QueryRow(`SELECT record_date FROM records WHERE id = ?`, appID).Scan(&appDateStr); err != nil {
		return fmt.Errorf("load application %d date: %w", appID, err)
	}
	appDate, err := time.Parse("2006-01-02", appDateStr)
	if err != nil {
		return fmt.Errorf("parse application date %q: %w", appDateStr, err)
	}
	daysGap := int(outcomeDate.Sub(appDate).Hours() / 24)

	_, err = tx.Exec(`
		INSERT INTO record_links (new_app_id, outcome_id, confidence, days_gap)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(new_app_id, outcome_id) DO UPDATE SET confidence = excluded.confidence, days_gap = excluded.days_gap
	`, appID, outcomeID, string(confidence), daysGap)
	if err != nil {
		return fmt.Errorf("insert record_link %d -> %d: %w", appID, outcomeID, err)
	}
	return nil
}

// forwardBestOutcome picks the earliest outcome row (by record_date, ties
// broken by lower id) resolving appID's license_number and application_type
// family, within toleranceDays of the application's record_date.
func forwardBestOutcome(tx *sql.Tx, appID int64) (candidate, bool, error) {
	var licenseNumber, appType, dateStr string
	if err := tx.QueryRow(`SELECT license_number, application_type, record_date FROM records WHERE id = ?`, appID).
		Scan(&licenseNumber, &appType, &dateStr); err != nil {
		return candidate{}, false, fmt.Errorf("load application %d: %w", appID, err)
	}
	if licenseNumber == "" {
		return candidate{}, false, nil
	}
	section, outcomeAppType, ok := outcomeTarget(appType)
	if !ok {
		return candidate{}, false, nil
	}
	appDate, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return candidate{}, false, fmt.Errorf("parse application date %q: %w", dateStr, err)
	}

	rows, err := tx.Query(`
		SELECT id, record_date FROM records
		WHERE license_number = ? AND section = ? AND application_type = ?
		ORDER BY record_date ASC, id ASC
	`, licenseNumber, string(section), outcomeAppType)
	if err != nil {
		return candidate{}, false, fmt.Errorf("list outcome candidates for %s: %w", licenseNumber, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c candidate
		var cDateStr string
		if err := rows.Scan(&c.id, &cDateStr); err != nil {
			return candidate{}, false, fmt.Errorf("scan outcome candidate: %w", err)
		}
		d, err := time.Parse("2006-01-02", cDateStr)
		if err != nil {
			return candidate{}, false, fmt.Errorf("parse outcome date %q: %w", cDateStr, err)
		}
		c.recordDate = d
		gapDays := int(d.Sub(appDate).Hours() / 24)
		if gapDays < -toleranceDays {
			continue
		}
		if gapDays > toleranceDays {
			break // ordered ascending by date: nothing earlier remains in tolerance
		}
		return c, true, rows.Err()
	}
	return candidate{}, false, rows.Err()
}

// backwardBestApp picks the latest new_application row (by record_date,
// ties broken by higher id) whose license_number and application_type
// family resolves against outcomeID, within toleranceDays.
func backwardBestApp(tx *sql.Tx, outcomeID int64) (candidate, bool, error) {
	var licenseNumber, appType, section, dateStr string
	if err := tx.QueryRow(`SELECT license_number, application_type, section, record_date FROM records WHERE id = ?`, outcomeID).
		Scan(&licenseNumber, &appType, &section, &dateStr); err != nil {
		return candidate{}, false, fmt.Errorf("load outcome %d: %w", outcomeID, err)
	}
	if licenseNumber == "" {
		return candidate{}, false, nil
	}
	newAppType, ok := applicationTarget(model.Section(section), appType)
	if !ok {
		return candidate{}, false, nil
	}
	outcomeDate, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return candidate{}, false, fmt.Errorf("parse outcome date %q: %w", dateStr, err)
	}

	rows, err := tx.Query(`
		SELECT id, record_date FROM records
		WHERE license_number = ? AND section = ? AND application_type = ?
		ORDER BY record_date DESC, id DESC
	`, licenseNumber, string(model.SectionNewApplication), newAppType)
	if err != nil {
		return candidate{}, false, fmt.Errorf("list application candidates for %s: %w", licenseNumber, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c candidate
		var cDateStr string
		if err := rows.Scan(&c.id, &cDateStr); err != nil {
			return candidate{}, false, fmt.Errorf("scan application candidate: %w", err)
		}
		d, err := time.Parse("2006-01-02", cDateStr)
		if err != nil {
			return candidate{}, false, fmt.Errorf("parse application date %q: %w", cDateStr, err)
		}
		c.recordDate = d
		gapDays := int(outcomeDate.Sub(d).Hours() / 24)
		if gapDays < -toleranceDays {
			continue // candidate still later than the outcome by more than tolerance
		}
		if gapDays > toleranceDays {
			break // ordered descending by date: nothing at or after this row remains in tolerance
		}
		return c, true, rows.Err()
	}
	return candidate{}, false, rows.Err()
}

// GetOutcomeStatus classifies a record's resolution as seen from "now":
// approved/discontinued if linked, data_gap for an unlinked NEW APPLICATION
// dated after the known scraping gap, pending if still within the pending
// window, unknown otherwise, and "" (no status) for non-linkable records.
func GetOutcomeStatus(db *sql.DB, recordID int64, now time.Time) (model.OutcomeStatus, error) {
	var section, applicationType, dateStr string
	if err := db.QueryRow(`SELECT section, application_type, record_date FROM records WHERE id = ?`, recordID).
		Scan(&section, &applicationType, &dateStr); err != nil {
		return "", fmt.Errorf("load record %d: %w", recordID, err)
	}
	if model.Section(section) != model.SectionNewApplication {
		return "", nil
	}
	if _, _, ok := outcomeTarget(applicationType); !ok {
		return "", nil
	}

	var outcomeSection sql.NullString
	err := db.QueryRow(`
		SELECT o.section FROM record_links rl
		JOIN records o ON o.id = rl.outcome_id
		WHERE rl.new_app_id = ?
		ORDER BY rl.confidence = 'high' DESC, rl.days_gap ASC
		LIMIT 1
	`, recordID).Scan(&outcomeSection)
	switch {
	case err == nil && outcomeSection.Valid:
		switch model.Section(outcomeSection.String) {
		case model.SectionApproved:
			return model.OutcomeApproved, nil
		case model.SectionDiscontinued:
			return model.OutcomeDiscontinued, nil
		}
	case err != nil && err != sql.ErrNoRows:
		return "", fmt.Errorf("load outcome link for record %d: %w", recordID, err)
	}

	recordDate, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return "", fmt.Errorf("parse record_date %q: %w", dateStr, err)
	}

	if applicationType == appTypeNewApplication && recordDate.After(dataGapCutoff) {
		return model.OutcomeDataGap, nil
	}

	ageDays := int(now.Sub(recordDate).Hours() / 24)
	if ageDays <= pendingWindowDays {
		return model.OutcomePending, nil
	}
	return model.OutcomeUnknown, nil
}
