package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lcbregistry/internal/model"
	"lcbregistry/internal/store"
)

const snapshotFixture = `<html><body>
<h2>APPROVED</h2>
<table>
<tr><th>Date</th><th>Business Name</th><th>License Type</th><th>License Number</th></tr>
<tr><td>6/1/2025</td><td>Old Leaf Co</td><td>TAVERN</td><td>100001</td></tr>
</table>
</body></html>`

func TestBackfillSnapshots_IngestsAndRegistersSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2025-06-01.html"), []byte(snapshotFixture), 0o644))

	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	result, err := BackfillSnapshots(db.Conn(), nil, dir)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesProcessed)
	require.Equal(t, 1, result.Inserted)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT count(*) FROM sources WHERE source_type = 'co_archive'`).Scan(&count))
	require.Equal(t, 1, count)
}

const diffFixture = "Date: Tue, 10 Jun 2025 08:00:00 -0700\n" +
	"+6/10/2025\tNew Leaf Dispensary\tNew Leaf Dispensary; Carol Newby\tCANNABIS RETAILER\tASSUMPTION\t415678\t123 Main St, Olympia, WA 98501\n"

func TestBackfillDiffs_InfersSectionFromFilenameAndDedupsAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new_application-2025-06-10.diff"), []byte(diffFixture), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new_application-2025-06-11.diff"), []byte(diffFixture), 0o644))

	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	result, err := BackfillDiffs(db.Conn(), nil, dir, DiffOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, result.FilesProcessed)
	require.Equal(t, 1, result.Inserted)
	require.Equal(t, 1, result.Skipped)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT count(*) FROM records`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestBackfillDiffs_DryRunDoesNotWrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new_application-2025-06-10.diff"), []byte(diffFixture), 0o644))

	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	result, err := BackfillDiffs(db.Conn(), nil, dir, DiffOptions{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, 1, result.Inserted)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT count(*) FROM records`).Scan(&count))
	require.Zero(t, count)

	_ = model.SectionNewApplication
}
