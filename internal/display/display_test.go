package display

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lcbregistry/internal/model"
	"lcbregistry/internal/provenance"
	"lcbregistry/internal/store"
)

func TestClassifyOutcome_LabelsPending(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	res, err := db.Conn().Exec(`
		INSERT INTO records (section, record_date, license_number, application_type, scraped_at)
		VALUES ('new_application', '2025-07-01', '1', 'ASSUMPTION', CURRENT_TIMESTAMP)
	`)
	require.NoError(t, err)
	pendingID, err := res.LastInsertId()
	require.NoError(t, err)

	label, err := ClassifyOutcome(db.Conn(), pendingID, time.Date(2025, 7, 29, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "Pending", label)
}

func TestSummarizeProvenance_JoinsSourcesWithRoles(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)

	res, err := tx.Exec(`
		INSERT INTO records (section, record_date, license_number, application_type, scraped_at)
		VALUES ('new_application', '2025-06-10', '1', 'ASSUMPTION', CURRENT_TIMESTAMP)
	`)
	require.NoError(t, err)
	recordID, err := res.LastInsertId()
	require.NoError(t, err)

	sourceID, err := provenance.RegisterSnapshotSource(tx, model.SourceCOArchive, "a.html", "", time.Now())
	require.NoError(t, err)
	require.NoError(t, provenance.AttachRecord(tx, recordID, sourceID, model.RoleFirstSeen))
	require.NoError(t, tx.Commit())

	summary, err := SummarizeProvenance(db.Conn(), recordID)
	require.NoError(t, err)
	require.Equal(t, "co_archive (first_seen)", summary)
}

func TestSummarizeProvenance_NoSourcesReturnsPlaceholder(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	res, err := db.Conn().Exec(`
		INSERT INTO records (section, record_date, license_number, application_type, scraped_at)
		VALUES ('new_application', '2025-06-10', '1', 'ASSUMPTION', CURRENT_TIMESTAMP)
	`)
	require.NoError(t, err)
	recordID, err := res.LastInsertId()
	require.NoError(t, err)

	summary, err := SummarizeProvenance(db.Conn(), recordID)
	require.NoError(t, err)
	require.Equal(t, "no recorded source", summary)
}
