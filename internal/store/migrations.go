package store

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Migration is one step in the append-only migration registry: never edit a
// past migration, add a new one with a higher version.
type Migration struct {
	Version int
	Name    string
	Up      func(tx *sql.Tx) error
}

// BaselineVersion is the version stamped onto a pre-existing, already
// populated database discovered at user_version 0 — baseline DDL is not
// re-run in that case, since the tables are assumed to already exist in
// compatible form.
const BaselineVersion = 2

var migrations = []Migration{
	{Version: 1, Name: "baseline_schema", Up: func(tx *sql.Tx) error {
		_, err := tx.Exec(baselineSchema)
		return err
	}},
	{Version: 2, Name: "fts_index", Up: func(tx *sql.Tx) error {
		if err := rebuildFTSIfNeeded(tx); err != nil {
			return err
		}
		return nil
	}},
}

// Migrate reads the current schema version, detects the stamping scenario,
// then runs every pending migration in its own write transaction followed by
// a version bump. Baseline DDL uses CREATE ... IF NOT EXISTS and later
// migrations introspect columns/tables before ALTER, so the same function is
// safe to run repeatedly on any database at or below its version.
func Migrate(db *sql.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	version, err := userVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version == 0 {
		populated, err := tableExists(db, "records")
		if err != nil {
			return fmt.Errorf("check baseline stamping: %w", err)
		}
		if populated {
			logger.Info("stamping pre-existing database to baseline schema version",
				zap.Int("baseline_version", BaselineVersion))
			if err := setUserVersion(db, BaselineVersion); err != nil {
				return fmt.Errorf("stamp baseline version: %w", err)
			}
			version = BaselineVersion
		}
	}

	for _, m := range migrations {
		if m.Version <= version {
			continue
		}
		logger.Info("running migration", zap.Int("version", m.Version), zap.String("name", m.Name))

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d (%s): begin: %w", m.Version, m.Name, err)
		}
		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d (%s): commit: %w", m.Version, m.Name, err)
		}
		if err := setUserVersion(db, m.Version); err != nil {
			return fmt.Errorf("migration %d (%s): bump version: %w", m.Version, m.Name, err)
		}
		version = m.Version
	}

	return nil
}

func userVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func setUserVersion(db *sql.DB, v int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v))
	return err
}

func tableExists(db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRow(
		"SELECT count(*) FROM sqlite_master WHERE type='table' AND name = ?", name,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// rebuildFTSIfNeeded rebuilds the FTS index when either the column list or
// the embedded content-source string changed since the last migration run.
func rebuildFTSIfNeeded(tx *sql.Tx) error {
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return err
	}

	var stored string
	err := tx.QueryRow(`SELECT value FROM schema_meta WHERE key = 'fts_signature'`).Scan(&stored)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if stored == ftsContentSignature {
		return nil
	}

	if _, err := tx.Exec(ftsSchema); err != nil {
		return err
	}
	// Populate the index from whatever records already exist.
	if _, err := tx.Exec(`
		INSERT INTO record_search_fts(
			rowid, business_name, business_location, applicants, license_type,
			application_type, license_number, previous_business_name,
			previous_business_location, previous_applicants
		)
		SELECT rowid, business_name, business_location, applicants, license_type,
			application_type, license_number, previous_business_name,
			previous_business_location, previous_applicants
		FROM record_search_view
	`); err != nil {
		return err
	}

	_, err = tx.Exec(`INSERT INTO schema_meta (key, value) VALUES ('fts_signature', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, ftsContentSignature)
	return err
}
