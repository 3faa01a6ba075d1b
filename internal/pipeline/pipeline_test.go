package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lcbregistry/internal/model"
	"lcbregistry/internal/store"
)

func rawRecord(licenseNumber, appType string) model.RawRecord {
	return model.RawRecord{
		"section":            "new_application",
		"record_date":        "2025-06-10",
		"business_name":      "New Leaf Dispensary",
		"applicants":         "New Leaf Dispensary; Carol Newby",
		"license_type":       "CANNABIS RETAILER",
		"application_type":   appType,
		"license_number":     licenseNumber,
		"location":           "123 Main St, Olympia, WA 98501",
	}
}

func TestIngestBatch_InsertsAndSkipsDuplicates(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	records := []model.RawRecord{
		rawRecord("415678", "NEW APPLICATION"),
		rawRecord("415678", "NEW APPLICATION"), // duplicate natural key
		rawRecord("415679", "NEW APPLICATION"),
	}

	result, err := IngestBatch(db.Conn(), nil, records, time.Now(), IngestOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, result.Inserted)
	require.Equal(t, 1, result.Skipped)
	require.Equal(t, 0, result.Failed)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT count(*) FROM records`).Scan(&count))
	require.Equal(t, 2, count)
}

func TestIngestBatch_CommitsEveryBatchSize(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	records := []model.RawRecord{
		rawRecord("1", "NEW APPLICATION"),
		rawRecord("2", "NEW APPLICATION"),
		rawRecord("3", "NEW APPLICATION"),
	}

	result, err := IngestBatch(db.Conn(), nil, records, time.Now(), IngestOptions{BatchSize: 1})
	require.NoError(t, err)
	require.Equal(t, 3, result.Inserted)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT count(*) FROM records`).Scan(&count))
	require.Equal(t, 3, count)
}

func TestIngestBatch_EmptyInputIsNoop(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	result, err := IngestBatch(db.Conn(), nil, nil, time.Now(), IngestOptions{})
	require.NoError(t, err)
	require.Equal(t, Result{}, result)
}

func TestIngestBatch_RunDiscoveryBuildsOutcomeLinks(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	app := rawRecord("L010", "RENEWAL")
	app["record_date"] = "2025-06-10"

	approved := rawRecord("L010", "RENEWAL")
	approved["section"] = "approved"
	approved["record_date"] = "2025-06-12"

	result, err := IngestBatch(db.Conn(), nil, []model.RawRecord{app, approved}, time.Now(), IngestOptions{RunDiscovery: true})
	require.NoError(t, err)
	require.Equal(t, 2, result.Inserted)

	var linkCount int
	require.NoError(t, db.Conn().QueryRow(`SELECT count(*) FROM record_links`).Scan(&linkCount))
	require.Equal(t, 1, linkCount)

	var confidence string
	require.NoError(t, db.Conn().QueryRow(`SELECT confidence FROM record_links`).Scan(&confidence))
	require.Equal(t, "high", confidence)
}
