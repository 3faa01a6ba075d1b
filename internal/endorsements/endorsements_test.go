package endorsements

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"lcbregistry/internal/store"
)

func insertRecord(t *testing.T, exec interface {
	Exec(query string, args ...any) (sql.Result, error)
}, section, licenseNumber string) int64 {
	t.Helper()
	res, err := exec.Exec(`
		INSERT INTO records (section, record_date, license_number, application_type, scraped_at)
		VALUES (?, '2025-06-10', ?, 'ASSUMPTION', CURRENT_TIMESTAMP)
	`, section, licenseNumber)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestProcessRecord_NumericCodeResolvesViaSeed(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, Seed(tx))

	recordID := insertRecord(t, tx, "approved", "415678")
	require.NoError(t, ProcessRecord(tx, recordID, "394"))

	var name string
	require.NoError(t, tx.QueryRow(`
		SELECT e.name FROM endorsements e
		JOIN record_endorsements re ON re.endorsement_id = e.id
		WHERE re.record_id = ?
	`, recordID).Scan(&name))
	require.Equal(t, "CANNABIS RETAILER", name)
}

func TestProcessRecord_BundledCodeLinksBothNames(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, Seed(tx))

	recordID := insertRecord(t, tx, "approved", "415679")
	require.NoError(t, ProcessRecord(tx, recordID, "320"))

	rows, err := tx.Query(`
		SELECT e.name FROM endorsements e
		JOIN record_endorsements re ON re.endorsement_id = e.id
		WHERE re.record_id = ? ORDER BY e.name
	`, recordID)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	require.Equal(t, []string{"BEER DISTRIBUTOR", "WINE DISTRIBUTOR"}, names)
}

func TestProcessRecord_UnknownCodeBecomesPlaceholderThenMerges(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	recordID := insertRecord(t, tx, "approved", "415680")
	require.NoError(t, ProcessRecord(tx, recordID, "999"))

	var placeholderName string
	require.NoError(t, tx.QueryRow(`
		SELECT e.name FROM endorsements e
		JOIN record_endorsements re ON re.endorsement_id = e.id
		WHERE re.record_id = ?
	`, recordID).Scan(&placeholderName))
	require.Equal(t, "999", placeholderName)

	// Legacy "CODE, NAME" form teaches the real mapping for the same code.
	secondID := insertRecord(t, tx, "discontinued", "415681")
	require.NoError(t, ProcessRecord(tx, secondID, "999, NEW LICENSE TYPE"))

	var resolvedName string
	require.NoError(t, tx.QueryRow(`
		SELECT e.name FROM endorsements e
		JOIN record_endorsements re ON re.endorsement_id = e.id
		WHERE re.record_id = ?
	`, recordID).Scan(&resolvedName))
	require.Equal(t, "NEW LICENSE TYPE", resolvedName,
		"original record's placeholder link should have migrated to the real endorsement")

	var placeholderCount int
	require.NoError(t, tx.QueryRow(`SELECT count(*) FROM endorsements WHERE name = '999'`).Scan(&placeholderCount))
	require.Zero(t, placeholderCount, "placeholder endorsement should be deleted after merge")
}

func TestProcessRecord_TextListSplitsOnSemicolon(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	recordID := insertRecord(t, tx, "new_application", "415682")
	require.NoError(t, ProcessRecord(tx, recordID, "spirits retailer; beer/wine specialty shop;"))

	rows, err := tx.Query(`
		SELECT e.name FROM endorsements e
		JOIN record_endorsements re ON re.endorsement_id = e.id
		WHERE re.record_id = ? ORDER BY e.name
	`, recordID)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	require.Equal(t, []string{"BEER/WINE SPECIALTY SHOP", "SPIRITS RETAILER"}, names)
}

func TestDiscoverCodeMappings_AdoptsIntersectionFromSharedLicenseNumber(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	newAppID := insertRecord(t, tx, "new_application", "999001")
	_, err = tx.Exec(`UPDATE records SET license_type = 'CANNABIS RETAILER' WHERE id = ?`, newAppID)
	require.NoError(t, err)
	require.NoError(t, ProcessRecord(tx, newAppID, "CANNABIS RETAILER"))

	approvedID := insertRecord(t, tx, "approved", "999001")
	_, err = tx.Exec(`UPDATE records SET license_type = '777' WHERE id = ?`, approvedID)
	require.NoError(t, err)
	require.NoError(t, ProcessRecord(tx, approvedID, "777"))

	discovered, err := DiscoverCodeMappings(tx)
	require.NoError(t, err)
	require.Equal(t, 1, discovered)

	var name string
	require.NoError(t, tx.QueryRow(`
		SELECT e.name FROM endorsements e
		JOIN record_endorsements re ON re.endorsement_id = e.id
		WHERE re.record_id = ?
	`, approvedID).Scan(&name))
	require.Equal(t, "CANNABIS RETAILER", name,
		"discovery should have migrated the approved record's placeholder link")
}

func TestMergeMixedCaseEndorsements_FoldsIntoUpperCaseCanonical(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	recordID := insertRecord(t, tx, "new_application", "415683")
	_, err = tx.Exec(`INSERT INTO endorsements (name) VALUES ('Tavern')`)
	require.NoError(t, err)
	var dirtyID int64
	require.NoError(t, tx.QueryRow(`SELECT id FROM endorsements WHERE name = 'Tavern'`).Scan(&dirtyID))
	_, err = tx.Exec(`INSERT INTO record_endorsements (record_id, endorsement_id) VALUES (?, ?)`, recordID, dirtyID)
	require.NoError(t, err)

	merged, err := MergeMixedCaseEndorsements(tx)
	require.NoError(t, err)
	require.Equal(t, 1, merged)

	var count int
	require.NoError(t, tx.QueryRow(`
		SELECT count(*) FROM record_endorsements re
		JOIN endorsements e ON e.id = re.endorsement_id
		WHERE re.record_id = ? AND e.name = 'TAVERN'
	`, recordID).Scan(&count))
	require.Equal(t, 1, count)
}

func TestRepairCodeNameEndorsements_ResolvesAndScrubsWhitespaceCodes(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	recordID := insertRecord(t, tx, "new_application", "415684")
	_, err = tx.Exec(`INSERT INTO endorsements (name) VALUES ('820, SPECIALTY TAVERN')`)
	require.NoError(t, err)
	var brokenID int64
	require.NoError(t, tx.QueryRow(`SELECT id FROM endorsements WHERE name = '820, SPECIALTY TAVERN'`).Scan(&brokenID))
	_, err = tx.Exec(`INSERT INTO record_endorsements (record_id, endorsement_id) VALUES (?, ?)`, recordID, brokenID)
	require.NoError(t, err)
	_, err = tx.Exec(`INSERT INTO endorsement_codes (code, endorsement_id) VALUES ('820 ', ?)`, brokenID)
	require.NoError(t, err)

	repaired, err := RepairCodeNameEndorsements(tx)
	require.NoError(t, err)
	require.Equal(t, 1, repaired)

	var count int
	require.NoError(t, tx.QueryRow(`
		SELECT count(*) FROM record_endorsements re
		JOIN endorsements e ON e.id = re.endorsement_id
		WHERE re.record_id = ? AND e.name = 'SPECIALTY TAVERN'
	`, recordID).Scan(&count))
	require.Equal(t, 1, count)

	var whitespaceCodeCount int
	require.NoError(t, tx.QueryRow(`SELECT count(*) FROM endorsement_codes WHERE code GLOB '* *'`).Scan(&whitespaceCodeCount))
	require.Zero(t, whitespaceCodeCount)
}

func TestParseCode(t *testing.T) {
	n, ok := ParseCode(" 394 ")
	require.True(t, ok)
	require.Equal(t, 394, n)

	_, ok = ParseCode("394, RETAILER")
	require.False(t, ok)
}
