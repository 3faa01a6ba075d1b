package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_FreshDatabaseStampsToLatestVersion(t *testing.T) {
	db := openMemory(t)

	v, err := userVersion(db.Conn())
	require.NoError(t, err)
	require.Equal(t, migrations[len(migrations)-1].Version, v)

	exists, err := tableExists(db.Conn(), "records")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestMigrate_IsIdempotent(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, Migrate(db.Conn(), nil))
	require.NoError(t, Migrate(db.Conn(), nil))

	v, err := userVersion(db.Conn())
	require.NoError(t, err)
	require.Equal(t, migrations[len(migrations)-1].Version, v)
}

func TestMigrate_StampsPreExistingDatabaseAtVersionZero(t *testing.T) {
	db := openMemory(t)

	// Simulate a database that has tables but was never stamped (the
	// pre-framework scenario): force user_version back to 0.
	_, err := db.conn.Exec("PRAGMA user_version = 0")
	require.NoError(t, err)

	require.NoError(t, Migrate(db.conn, nil))

	v, err := userVersion(db.conn)
	require.NoError(t, err)
	require.GreaterOrEqual(t, v, BaselineVersion)
}

func TestFTSIndexStaysInSyncWithRecords(t *testing.T) {
	db := openMemory(t)

	loc := insertTestLocation(t, db.conn, "123 MAIN ST, OLYMPIA, WA 98501")
	insertTestRecord(t, db.conn, "new_application", "2025-06-10", "L001", "NEW APPLICATION", "ACME LIQUOR STORE", loc)

	var count int
	err := db.conn.QueryRow(`SELECT count(*) FROM record_search_fts WHERE record_search_fts MATCH 'ACME'`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func insertTestLocation(t *testing.T, conn *sql.DB, raw string) int64 {
	t.Helper()
	res, err := conn.Exec(`INSERT INTO locations (raw_address) VALUES (?)`, raw)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func insertTestRecord(t *testing.T, conn *sql.DB, section, date, licenseNumber, appType, name string, locID int64) int64 {
	t.Helper()
	res, err := conn.Exec(`
		INSERT INTO records (section, record_date, license_number, application_type, business_name, location_id, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, section, date, licenseNumber, appType, name, locID)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}
