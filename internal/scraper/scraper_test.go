package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lcbregistry/internal/model"
	"lcbregistry/internal/store"
)

type fakeValidator struct {
	calls int
}

func (f *fakeValidator) Standardize(ctx context.Context, rawAddress string) (*model.AddressStandardization, error) {
	f.calls++
	return &model.AddressStandardization{
		AddressLine1: "123 MAIN ST",
		City:         "OLYMPIA",
		State:        "WA",
		ZipCode:      "98501",
	}, nil
}

const fixtureHTML = `<html><body>
<h2>NEW APPLICATIONS</h2>
<table>
<tr><th>Date</th><th>Business Name</th><th>Applicants</th><th>License Type</th><th>License Number</th><th>Business Location</th></tr>
<tr><td>6/10/2025</td><td>New Leaf Dispensary</td><td>New Leaf Dispensary; Carol Newby</td><td>CANNABIS RETAILER</td><td>415678</td><td>123 Main St, Olympia, WA 98501</td></tr>
</table>
</body></html>`

func TestRun_IngestsNewContentAndRegistersSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fixtureHTML))
	}))
	defer server.Close()

	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	result, err := Run(context.Background(), db.Conn(), nil, Options{
		URL:         server.URL,
		SnapshotDir: t.TempDir(),
	})
	require.NoError(t, err)
	require.Equal(t, "success", string(result.Status))
	require.Equal(t, 1, result.Ingest.Inserted)

	var sourceCount int
	require.NoError(t, db.Conn().QueryRow(`SELECT count(*) FROM sources WHERE source_type = 'live_scrape'`).Scan(&sourceCount))
	require.Equal(t, 1, sourceCount)
}

func TestRun_UnchangedContentSkipsIngest(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.Write([]byte(fixtureHTML))
	}))
	defer server.Close()

	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	opts := Options{URL: server.URL, SnapshotDir: t.TempDir()}
	_, err = Run(context.Background(), db.Conn(), nil, opts)
	require.NoError(t, err)

	result, err := Run(context.Background(), db.Conn(), nil, opts)
	require.NoError(t, err)
	require.Equal(t, "unchanged", string(result.Status))

	var recordCount int
	require.NoError(t, db.Conn().QueryRow(`SELECT count(*) FROM records`).Scan(&recordCount))
	require.Equal(t, 1, recordCount, "unchanged scrape must not re-ingest")
}

func TestRun_ValidatesNewlyInsertedLocations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fixtureHTML))
	}))
	defer server.Close()

	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	validator := &fakeValidator{}
	result, err := Run(context.Background(), db.Conn(), nil, Options{
		URL:         server.URL,
		SnapshotDir: t.TempDir(),
		Validator:   validator,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Ingest.Inserted)
	require.Equal(t, 1, validator.calls)

	var stdCity string
	require.NoError(t, db.Conn().QueryRow(`SELECT std_city FROM locations`).Scan(&stdCity))
	require.Equal(t, "OLYMPIA", stdCity)
}

func TestCleanupRedundantScrapes_RemovesAllButEarliestPerHash(t *testing.T) {
	db, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	_, err = db.Conn().Exec(`INSERT INTO scrape_log (started_at, status, content_hash) VALUES (?, 'success', 'abc')`, now)
	require.NoError(t, err)
	_, err = db.Conn().Exec(`INSERT INTO scrape_log (started_at, status, content_hash, snapshot_path) VALUES (?, 'unchanged', 'abc', 'x.html')`, now)
	require.NoError(t, err)

	removed, err := CleanupRedundantScrapes(db.Conn(), true)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
}
