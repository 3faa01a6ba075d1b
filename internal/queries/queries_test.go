package queries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lcbregistry/internal/model"
	"lcbregistry/internal/store"
)

func sampleRaw() model.RawRecord {
	return model.RawRecord{
		"section":              "new_application",
		"record_date":          "2025-06-10",
		"business_name":        "New Leaf Dispensary",
		"applicants":           "New Leaf Dispensary; Carol Newby",
		"license_type":         "CANNABIS RETAILER",
		"application_type":     "ASSUMPTION",
		"license_number":       "415678",
		"contact_phone":        "360-555-0100",
		"location":             "123 Main St, Olympia, WA 98501",
		"previous_location":    "",
		"previous_business_name": "",
		"previous_applicants":  "",
	}
}

func TestInsertRecord_InsertsAndHydrates(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)

	recordID, inserted, err := InsertRecord(tx, sampleRaw(), time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, tx.Commit())

	detail, err := Hydrate(db.Conn(), recordID)
	require.NoError(t, err)
	require.Equal(t, "NEW LEAF DISPENSARY", detail.BusinessName)
	require.Equal(t, []string{"CAROL NEWBY"}, detail.Applicants)
	require.Equal(t, []string{"CANNABIS RETAILER"}, detail.Endorsements)
	require.NotNil(t, detail.LocationID)
}

func TestInsertRecord_NaturalKeyDuplicateReturnsExistingID(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)

	raw := sampleRaw()
	firstID, inserted, err := InsertRecord(tx, raw, time.Now())
	require.NoError(t, err)
	require.True(t, inserted)

	secondID, inserted, err := InsertRecord(tx, raw, time.Now())
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, firstID, secondID)

	var count int
	require.NoError(t, tx.QueryRow(`SELECT count(*) FROM records`).Scan(&count))
	require.Equal(t, 1, count)
	require.NoError(t, tx.Rollback())
}

func TestSearch_FindsByBusinessName(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	_, _, err = InsertRecord(tx, sampleRaw(), time.Now())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	results, err := Search(db.Conn(), "Newby", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}
