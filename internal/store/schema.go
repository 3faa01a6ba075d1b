package store

// baselineSchema is migration 1: every table the core data model needs.
// CREATE ... IF NOT EXISTS makes this safe to run against a database that
// already has some of the tables. A database found at user_version 0 that
// already has a records table is stamped by Migrate and this is not run.
const baselineSchema = `
CREATE TABLE IF NOT EXISTS locations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	raw_address TEXT NOT NULL UNIQUE,
	city TEXT DEFAULT '',
	state TEXT DEFAULT '',
	zip TEXT DEFAULT '',
	address_line_1 TEXT DEFAULT '',
	address_line_2 TEXT DEFAULT '',
	std_city TEXT DEFAULT '',
	std_state TEXT DEFAULT '',
	std_zip TEXT DEFAULT '',
	address_validated_at DATETIME
);

CREATE TABLE IF NOT EXISTS records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	section TEXT NOT NULL,
	record_date TEXT NOT NULL,
	business_name TEXT NOT NULL DEFAULT '',
	previous_business_name TEXT NOT NULL DEFAULT '',
	applicants TEXT NOT NULL DEFAULT '',
	previous_applicants TEXT NOT NULL DEFAULT '',
	license_type TEXT NOT NULL DEFAULT '',
	application_type TEXT NOT NULL DEFAULT '',
	license_number TEXT NOT NULL DEFAULT '',
	contact_phone TEXT NOT NULL DEFAULT '',
	location_id INTEGER REFERENCES locations(id),
	previous_location_id INTEGER REFERENCES locations(id),
	scraped_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	raw_business_name TEXT NOT NULL DEFAULT '',
	raw_previous_business_name TEXT NOT NULL DEFAULT '',
	raw_applicants TEXT NOT NULL DEFAULT '',
	raw_previous_applicants TEXT NOT NULL DEFAULT '',
	UNIQUE (section, record_date, license_number, application_type)
);

CREATE INDEX IF NOT EXISTS idx_records_license_number ON records(license_number);
CREATE INDEX IF NOT EXISTS idx_records_section_date ON records(section, record_date);
CREATE INDEX IF NOT EXISTS idx_records_application_type ON records(application_type);

CREATE TABLE IF NOT EXISTS entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	entity_type TEXT NOT NULL DEFAULT 'person'
);

CREATE TABLE IF NOT EXISTS record_entities (
	record_id INTEGER NOT NULL REFERENCES records(id) ON DELETE CASCADE,
	entity_id INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (record_id, entity_id, role)
);

CREATE INDEX IF NOT EXISTS idx_record_entities_entity ON record_entities(entity_id);

CREATE TABLE IF NOT EXISTS endorsements (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS endorsement_codes (
	code TEXT NOT NULL,
	endorsement_id INTEGER NOT NULL REFERENCES endorsements(id) ON DELETE CASCADE,
	PRIMARY KEY (code, endorsement_id)
);

CREATE INDEX IF NOT EXISTS idx_endorsement_codes_code ON endorsement_codes(code);

CREATE TABLE IF NOT EXISTS record_endorsements (
	record_id INTEGER NOT NULL REFERENCES records(id) ON DELETE CASCADE,
	endorsement_id INTEGER NOT NULL REFERENCES endorsements(id) ON DELETE CASCADE,
	PRIMARY KEY (record_id, endorsement_id)
);

CREATE INDEX IF NOT EXISTS idx_record_endorsements_endorsement ON record_endorsements(endorsement_id);

CREATE TABLE IF NOT EXISTS source_types (
	name TEXT PRIMARY KEY
);

INSERT OR IGNORE INTO source_types (name) VALUES
	('live_scrape'), ('co_archive'), ('internet_archive'), ('co_diff_archive'), ('manual');

CREATE TABLE IF NOT EXISTS sources (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_type TEXT NOT NULL REFERENCES source_types(name),
	snapshot_path TEXT,
	url TEXT NOT NULL DEFAULT '',
	captured_at DATETIME NOT NULL,
	ingested_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	scrape_log_id INTEGER,
	metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_sources_type_snapshot
	ON sources(source_type, snapshot_path) WHERE snapshot_path IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_sources_type_scrapelog
	ON sources(source_type, scrape_log_id) WHERE snapshot_path IS NULL;

CREATE TABLE IF NOT EXISTS record_sources (
	record_id INTEGER NOT NULL REFERENCES records(id) ON DELETE CASCADE,
	source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	PRIMARY KEY (record_id, source_id, role)
);

CREATE INDEX IF NOT EXISTS idx_record_sources_source ON record_sources(source_id);

CREATE TABLE IF NOT EXISTS scrape_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	status TEXT NOT NULL,
	new_count INTEGER NOT NULL DEFAULT 0,
	approved_count INTEGER NOT NULL DEFAULT 0,
	discontinued_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	snapshot_path TEXT,
	content_hash TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_scrape_log_status_hash ON scrape_log(status, content_hash);

CREATE TABLE IF NOT EXISTS record_links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	new_app_id INTEGER NOT NULL REFERENCES records(id) ON DELETE CASCADE,
	outcome_id INTEGER NOT NULL REFERENCES records(id) ON DELETE CASCADE,
	confidence TEXT NOT NULL,
	days_gap INTEGER NOT NULL,
	UNIQUE (new_app_id, outcome_id)
);

CREATE INDEX IF NOT EXISTS idx_record_links_new_app ON record_links(new_app_id);
CREATE INDEX IF NOT EXISTS idx_record_links_outcome ON record_links(outcome_id);
`

// ftsSchema is migration 2: the full-text index over a view joining records
// to their primary and previous locations, kept fresh by triggers.
const ftsSchema = `
DROP VIEW IF EXISTS record_search_view;
CREATE VIEW record_search_view AS
SELECT
	r.id AS rowid,
	r.business_name,
	COALESCE(l.raw_address, '') AS business_location,
	r.applicants,
	r.license_type,
	r.application_type,
	r.license_number,
	r.previous_business_name,
	COALESCE(pl.raw_address, '') AS previous_business_location,
	r.previous_applicants
FROM records r
LEFT JOIN locations l ON l.id = r.location_id
LEFT JOIN locations pl ON pl.id = r.previous_location_id;

DROP TABLE IF EXISTS record_search_fts;
CREATE VIRTUAL TABLE record_search_fts USING fts5(
	business_name,
	business_location,
	applicants,
	license_type,
	application_type,
	license_number,
	previous_business_name,
	previous_business_location,
	previous_applicants,
	content='',
	content_rowid='rowid'
);

DROP TRIGGER IF EXISTS record_search_ai;
CREATE TRIGGER record_search_ai AFTER INSERT ON records BEGIN
	INSERT INTO record_search_fts(
		rowid, business_name, business_location, applicants, license_type,
		application_type, license_number, previous_business_name,
		previous_business_location, previous_applicants
	)
	SELECT rowid, business_name, business_location, applicants, license_type,
		application_type, license_number, previous_business_name,
		previous_business_location, previous_applicants
	FROM record_search_view WHERE rowid = new.id;
END;

DROP TRIGGER IF EXISTS record_search_ad;
CREATE TRIGGER record_search_ad AFTER DELETE ON records BEGIN
	INSERT INTO record_search_fts(record_search_fts, rowid) VALUES('delete', old.id);
END;

DROP TRIGGER IF EXISTS record_search_au;
CREATE TRIGGER record_search_au AFTER UPDATE ON records BEGIN
	INSERT INTO record_search_fts(record_search_fts, rowid) VALUES('delete', old.id);
	INSERT INTO record_search_fts(
		rowid, business_name, business_location, applicants, license_type,
		application_type, license_number, previous_business_name,
		previous_business_location, previous_applicants
	)
	SELECT rowid, business_name, business_location, applicants, license_type,
		application_type, license_number, previous_business_name,
		previous_business_location, previous_applicants
	FROM record_search_view WHERE rowid = new.id;
END;
`

// ftsContentSignature is compared against a stored marker to detect whether
// the FTS index needs a rebuild (column list or content-source changed).
const ftsContentSignature = "record_search_view:v1:business_name,business_location,applicants,license_type,application_type,license_number,previous_business_name,previous_business_location,previous_applicants"
