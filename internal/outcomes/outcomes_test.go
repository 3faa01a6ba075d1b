package outcomes

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lcbregistry/internal/store"
)

func insertFixtureRecord(t *testing.T, tx *sql.Tx, section, date, licenseNumber, applicationType string) int64 {
	t.Helper()
	res, err := tx.Exec(`
		INSERT INTO records (section, record_date, license_number, application_type, scraped_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, section, date, licenseNumber, applicationType)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestLinkNewRecord_HighConfidenceMutualMatch(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	newAppID := insertFixtureRecord(t, tx, "new_application", "2025-06-10", "415678", "RENEWAL")
	approvedID := insertFixtureRecord(t, tx, "approved", "2025-06-12", "415678", "RENEWAL")

	ok, err := LinkNewRecord(tx, newAppID)
	require.NoError(t, err)
	require.True(t, ok)

	var confidence string
	var outcomeID int64
	var daysGap int
	require.NoError(t, tx.QueryRow(`SELECT confidence, outcome_id, days_gap FROM record_links WHERE new_app_id = ?`, newAppID).
		Scan(&confidence, &outcomeID, &daysGap))
	require.Equal(t, "high", confidence)
	require.Equal(t, approvedID, outcomeID)
	require.Equal(t, 2, daysGap)
}

func TestLinkNewRecord_MediumConfidenceWithinTolerance(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	// Two competing applications for the same outcome: the later one is the
	// backward-best match (mutual, high), the earlier one is not (medium).
	insertFixtureRecord(t, tx, "new_application", "2025-06-08", "415679", "RENEWAL")
	laterAppID := insertFixtureRecord(t, tx, "new_application", "2025-06-10", "415679", "RENEWAL")
	insertFixtureRecord(t, tx, "approved", "2025-06-12", "415679", "RENEWAL")

	linked, err := BuildAllLinks(tx)
	require.NoError(t, err)
	require.Equal(t, 2, linked)

	rows, err := tx.Query(`SELECT new_app_id, confidence FROM record_links ORDER BY new_app_id`)
	require.NoError(t, err)
	defer rows.Close()

	confidenceByApp := map[int64]string{}
	for rows.Next() {
		var appID int64
		var confidence string
		require.NoError(t, rows.Scan(&appID, &confidence))
		confidenceByApp[appID] = confidence
	}
	require.Equal(t, "high", confidenceByApp[laterAppID])
	for appID, c := range confidenceByApp {
		if appID != laterAppID {
			require.Equal(t, "medium", c)
		}
	}
}

func TestLinkNewRecord_OutsideToleranceNoLink(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	newAppID := insertFixtureRecord(t, tx, "new_application", "2025-06-10", "415680", "RENEWAL")
	insertFixtureRecord(t, tx, "approved", "2025-07-01", "415680", "RENEWAL")

	ok, err := LinkNewRecord(tx, newAppID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLinkNewRecord_MismatchedApplicationTypeNoLink(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	newAppID := insertFixtureRecord(t, tx, "new_application", "2025-06-10", "415681", "RENEWAL")
	insertFixtureRecord(t, tx, "approved", "2025-06-11", "415681", "CHANGE OF LOCATION")

	ok, err := LinkNewRecord(tx, newAppID)
	require.NoError(t, err)
	require.False(t, ok, "an approved row of a different application_type must not resolve a RENEWAL application")
}

func TestLinkNewRecord_DiscontinuanceFamily(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	newAppID := insertFixtureRecord(t, tx, "new_application", "2025-06-10", "415682", "DISC. LIQUOR SALES")
	discontinuedID := insertFixtureRecord(t, tx, "discontinued", "2025-06-11", "415682", "DISCONTINUED")

	ok, err := LinkNewRecord(tx, newAppID)
	require.NoError(t, err)
	require.True(t, ok)

	var outcomeID int64
	require.NoError(t, tx.QueryRow(`SELECT outcome_id FROM record_links WHERE new_app_id = ?`, newAppID).Scan(&outcomeID))
	require.Equal(t, discontinuedID, outcomeID)
}

func TestGetOutcomeStatus_Classifications(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)

	linked := insertFixtureRecord(t, tx, "new_application", "2025-06-10", "1", "RENEWAL")
	insertFixtureRecord(t, tx, "approved", "2025-06-10", "1", "RENEWAL")
	_, err = LinkNewRecord(tx, linked)
	require.NoError(t, err)

	// Dated after the data-gap cutoff, NEW APPLICATION, never resolved.
	dataGap := insertFixtureRecord(t, tx, "new_application", "2025-06-01", "2", appTypeNewApplication)
	// Recent and unresolved, within the pending window.
	pending := insertFixtureRecord(t, tx, "new_application", "2025-07-01", "3", "RENEWAL")
	// Old, unresolved, predates the data-gap cutoff and outside the pending window.
	stale := insertFixtureRecord(t, tx, "new_application", "2024-01-01", "4", "RENEWAL")
	// Non-linkable application_type: no status at all.
	unlinkable := insertFixtureRecord(t, tx, "new_application", "2025-06-01", "5", "DISC. LIQUOR SALES TRANSFER")

	require.NoError(t, tx.Commit())

	now := time.Date(2025, 7, 29, 0, 0, 0, 0, time.UTC)

	status, err := GetOutcomeStatus(db.Conn(), linked, now)
	require.NoError(t, err)
	require.Equal(t, "approved", string(status))

	status, err = GetOutcomeStatus(db.Conn(), dataGap, now)
	require.NoError(t, err)
	require.Equal(t, "data_gap", string(status))

	status, err = GetOutcomeStatus(db.Conn(), pending, now)
	require.NoError(t, err)
	require.Equal(t, "pending", string(status))

	status, err = GetOutcomeStatus(db.Conn(), stale, now)
	require.NoError(t, err)
	require.Equal(t, "unknown", string(status))

	status, err = GetOutcomeStatus(db.Conn(), unlinkable, now)
	require.NoError(t, err)
	require.Equal(t, "", string(status))
}
