package integrity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lcbregistry/internal/store"
)

func TestRunAll_DetectsOrphanLocationAndFixesWhenAsked(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Conn().Exec(`INSERT INTO locations (raw_address) VALUES ('999 Nowhere Ave, Olympia, WA 98501')`)
	require.NoError(t, err)

	report, err := RunAll(db.Conn(), false)
	require.NoError(t, err)

	var found bool
	for _, f := range report.Findings {
		if f.Check == "orphan_location" {
			found = true
			require.False(t, f.Fixed)
		}
	}
	require.True(t, found)

	report, err = RunAll(db.Conn(), true)
	require.NoError(t, err)
	for _, f := range report.Findings {
		if f.Check == "orphan_location" {
			require.True(t, f.Fixed)
		}
	}

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT count(*) FROM locations`).Scan(&count))
	require.Zero(t, count)
}

func TestRunAll_DetectsEntityCaseDuplicate(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Conn().Exec(`INSERT INTO entities (name, entity_type) VALUES ('Carol Newby.', 'person')`)
	require.NoError(t, err)

	report, err := RunAll(db.Conn(), true)
	require.NoError(t, err)

	var found bool
	for _, f := range report.Findings {
		if f.Check == "entity_case_duplicate" {
			found = true
			require.True(t, f.Fixed)
		}
	}
	require.True(t, found)
}

func TestRunAll_NoFindingsOnCleanDatabase(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	report, err := RunAll(db.Conn(), false)
	require.NoError(t, err)
	require.Empty(t, report.Findings)
}
