// Package endorsements resolves the three upstream representations of a
// license-type field into canonical endorsement rows, with code-discovery,
// placeholder merging, and repair passes for historical drift.
package endorsements

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	purelyDigits  = regexp.MustCompile(`^\d+$`)
	codeNameForm  = regexp.MustCompile(`^(\d+),\s+(.+)$`)
)

// getOrCreateEndorsement looks up an endorsement by (already upper-cased)
// name, creating it if absent.
func getOrCreateEndorsement(tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM endorsements WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup endorsement %q: %w", name, err)
	}
	res, err := tx.Exec(`INSERT INTO endorsements (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return 0, fmt.Errorf("insert endorsement %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return res.LastInsertId()
	}
	if err := tx.QueryRow(`SELECT id FROM endorsements WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("re-read endorsement %q after insert race: %w", name, err)
	}
	return id, nil
}

// linkRecord inserts a (record, endorsement) junction row, ignoring conflicts.
func linkRecord(tx *sql.Tx, recordID, endorsementID int64) error {
	_, err := tx.Exec(`
		INSERT INTO record_endorsements (record_id, endorsement_id) VALUES (?, ?)
		ON CONFLICT(record_id, endorsement_id) DO NOTHING
	`, recordID, endorsementID)
	if err != nil {
		return fmt.Errorf("link record %d to endorsement %d: %w", recordID, endorsementID, err)
	}
	return nil
}

// codeMapping returns the endorsement ids a numeric code resolves to, if any.
func codeMapping(tx *sql.Tx, code string) ([]int64, error) {
	rows, err := tx.Query(`SELECT endorsement_id FROM endorsement_codes WHERE code = ?`, code)
	if err != nil {
		return nil, fmt.Errorf("lookup code %q: %w", code, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan code mapping: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// isPlaceholder reports whether the endorsement's name is purely numeric —
// the signature of a placeholder created when a code was seen with no known
// mapping.
func isPlaceholder(tx *sql.Tx, endorsementID int64) (bool, error) {
	var name string
	if err := tx.QueryRow(`SELECT name FROM endorsements WHERE id = ?`, endorsementID).Scan(&name); err != nil {
		return false, fmt.Errorf("lookup endorsement %d: %w", endorsementID, err)
	}
	return purelyDigits.MatchString(name), nil
}

// registerCodeMapping records that code resolves to endorsementID, then (if
// the endorsement is a real, non-placeholder mapping) migrates any records
// still linked to the code's placeholder over to it.
func registerCodeMapping(tx *sql.Tx, code string, endorsementID int64) error {
	_, err := tx.Exec(`
		INSERT INTO endorsement_codes (code, endorsement_id) VALUES (?, ?)
		ON CONFLICT(code, endorsement_id) DO NOTHING
	`, code, endorsementID)
	if err != nil {
		return fmt.Errorf("register code mapping %s -> %d: %w", code, endorsementID, err)
	}
	return mergePlaceholderForCode(tx, code, endorsementID)
}

// mergePlaceholderForCode migrates record links from code's placeholder
// endorsement to realID (if realID is itself non-placeholder and a
// placeholder for this exact code still exists), then deletes the
// placeholder and its self-mapping.
func mergePlaceholderForCode(tx *sql.Tx, code string, realID int64) error {
	placeholder, isPH := isPlaceholderForCode(tx, code, realID)
	if !isPH {
		return nil
	}

	if err := migrateEndorsementLinks(tx, placeholder, realID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM endorsement_codes WHERE code = ? AND endorsement_id = ?`, code, placeholder); err != nil {
		return fmt.Errorf("delete placeholder self-mapping for code %s: %w", code, err)
	}
	if _, err := tx.Exec(`DELETE FROM endorsements WHERE id = ?`, placeholder); err != nil {
		return fmt.Errorf("delete placeholder endorsement %d: %w", placeholder, err)
	}
	return nil
}

// isPlaceholderForCode reports whether code has a placeholder endorsement
// (name == code itself, distinct from realID) still mapped to it.
func isPlaceholderForCode(tx *sql.Tx, code string, realID int64) (int64, bool) {
	var placeholderID int64
	err := tx.QueryRow(`
		SELECT e.id FROM endorsements e
		JOIN endorsement_codes ec ON ec.endorsement_id = e.id
		WHERE ec.code = ? AND e.name = ? AND e.id != ?
	`, code, code, realID).Scan(&placeholderID)
	if err != nil {
		return 0, false
	}
	return placeholderID, true
}

// migrateEndorsementLinks moves every record_endorsements row from fromID to
// toID, ignoring rows that would collide.
func migrateEndorsementLinks(tx *sql.Tx, fromID, toID int64) error {
	if fromID == toID {
		return nil
	}
	_, err := tx.Exec(`
		INSERT INTO record_endorsements (record_id, endorsement_id)
		SELECT record_id, ? FROM record_endorsements WHERE endorsement_id = ?
		ON CONFLICT(record_id, endorsement_id) DO NOTHING
	`, toID, fromID)
	if err != nil {
		return fmt.Errorf("migrate endorsement links %d -> %d: %w", fromID, toID, err)
	}
	if _, err := tx.Exec(`DELETE FROM record_endorsements WHERE endorsement_id = ?`, fromID); err != nil {
		return fmt.Errorf("delete stale endorsement links %d: %w", fromID, err)
	}
	return nil
}

// ProcessRecord normalizes raw license-type text (as received in one of the
// three upstream forms) into canonical endorsement links for recordID.
func ProcessRecord(tx *sql.Tx, recordID int64, raw string) error {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimRight(trimmed, ",")
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return nil
	}

	if purelyDigits.MatchString(trimmed) {
		return processNumericCode(tx, recordID, trimmed)
	}
	if m := codeNameForm.FindStringSubmatch(trimmed); m != nil {
		return processCodeNameForm(tx, recordID, m[1], strings.ToUpper(strings.TrimSpace(m[2])))
	}
	return processTextList(tx, recordID, trimmed)
}

// processNumericCode handles the bare-code form: resolve via
// endorsement_codes, or create a placeholder mapped to itself.
func processNumericCode(tx *sql.Tx, recordID int64, code string) error {
	ids, err := codeMapping(tx, code)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		for _, id := range ids {
			if err := linkRecord(tx, recordID, id); err != nil {
				return err
			}
		}
		return nil
	}

	placeholderID, err := getOrCreateEndorsement(tx, code)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO endorsement_codes (code, endorsement_id) VALUES (?, ?)
		ON CONFLICT(code, endorsement_id) DO NOTHING
	`, code, placeholderID); err != nil {
		return fmt.Errorf("register placeholder mapping for code %s: %w", code, err)
	}
	return linkRecord(tx, recordID, placeholderID)
}

// processCodeNameForm handles the legacy "CODE, NAME" form: if the code
// already has a real (non-placeholder) mapping, link to that; otherwise
// create an endorsement from name and register the mapping.
func processCodeNameForm(tx *sql.Tx, recordID int64, code, name string) error {
	ids, err := codeMapping(tx, code)
	if err != nil {
		return err
	}
	var realIDs []int64
	for _, id := range ids {
		ph, err := isPlaceholder(tx, id)
		if err != nil {
			return err
		}
		if !ph {
			realIDs = append(realIDs, id)
		}
	}
	if len(realIDs) > 0 {
		for _, id := range realIDs {
			if err := linkRecord(tx, recordID, id); err != nil {
				return err
			}
		}
		return nil
	}

	endorsementID, err := getOrCreateEndorsement(tx, name)
	if err != nil {
		return err
	}
	if err := registerCodeMapping(tx, code, endorsementID); err != nil {
		return err
	}
	return linkRecord(tx, recordID, endorsementID)
}

// processTextList handles the ';'-delimited text-list form.
func processTextList(tx *sql.Tx, recordID int64, raw string) error {
	for _, part := range strings.Split(raw, ";") {
		name := strings.ToUpper(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		endorsementID, err := getOrCreateEndorsement(tx, name)
		if err != nil {
			return err
		}
		if err := linkRecord(tx, recordID, endorsementID); err != nil {
			return err
		}
	}
	return nil
}

// Seed inserts the hand-curated code->name map (idempotent: missing rows
// only), then runs the placeholder-merge pass.
func Seed(tx *sql.Tx) error {
	for _, sc := range seedCodes {
		for _, name := range sc.names {
			endorsementID, err := getOrCreateEndorsement(tx, strings.ToUpper(name))
			if err != nil {
				return err
			}
			if err := registerCodeMapping(tx, sc.code, endorsementID); err != nil {
				return err
			}
		}
	}
	return MergeSeededPlaceholders(tx)
}

// MergeSeededPlaceholders migrates any record still linked to a placeholder
// endorsement over to the real endorsement(s) now mapped to its code.
func MergeSeededPlaceholders(tx *sql.Tx) error {
	rows, err := tx.Query(`
		SELECT DISTINCT code FROM endorsement_codes
	`)
	if err != nil {
		return fmt.Errorf("list codes: %w", err)
	}
	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			rows.Close()
			return fmt.Errorf("scan code: %w", err)
		}
		codes = append(codes, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, code := range codes {
		ids, err := codeMapping(tx, code)
		if err != nil {
			return err
		}
		var realIDs []int64
		for _, id := range ids {
			ph, err := isPlaceholder(tx, id)
			if err != nil {
				return err
			}
			if !ph {
				realIDs = append(realIDs, id)
			}
		}
		if len(realIDs) == 0 {
			continue
		}
		for _, realID := range realIDs {
			if err := mergePlaceholderForCode(tx, code, realID); err != nil {
				return err
			}
		}
	}
	return nil
}

// DiscoverCodeMappings finds, for every unmapped numeric code appearing in
// approved/discontinued records, the new_application records sharing the same
// license_number, and adopts the intersection of their text endorsements as
// the code's mapping when that intersection is nonempty.
func DiscoverCodeMappings(tx *sql.Tx) (discovered int, err error) {
	rows, err := tx.Query(`
		SELECT DISTINCT r.license_type, r.license_number
		FROM records r
		WHERE r.section IN ('approved', 'discontinued')
		  AND r.license_type GLOB '[0-9]*'
	`)
	if err != nil {
		return 0, fmt.Errorf("list unmapped numeric license_type rows: %w", err)
	}
	type candidate struct {
		code          string
		licenseNumber string
	}
	var candidates []candidate
	for rows.Next() {
		var lt, ln string
		if err := rows.Scan(&lt, &ln); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan candidate: %w", err)
		}
		code := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(lt), ","))
		if !purelyDigits.MatchString(code) {
			continue
		}
		candidates = append(candidates, candidate{code: code, licenseNumber: ln})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, c := range candidates {
		mapped, err := codeMapping(tx, c.code)
		if err != nil {
			return discovered, err
		}
		hasReal := false
		for _, id := range mapped {
			ph, err := isPlaceholder(tx, id)
			if err != nil {
				return discovered, err
			}
			if !ph {
				hasReal = true
				break
			}
		}
		if hasReal {
			continue
		}

		names, err := tx.Query(`
			SELECT license_type FROM records
			WHERE section = 'new_application' AND license_number = ?
		`, c.licenseNumber)
		if err != nil {
			return discovered, fmt.Errorf("list new_application rows for license %s: %w", c.licenseNumber, err)
		}
		var sets []map[string]bool
		for names.Next() {
			var lt string
			if err := names.Scan(&lt); err != nil {
				names.Close()
				return discovered, fmt.Errorf("scan new_application license_type: %w", err)
			}
			set := map[string]bool{}
			for _, part := range strings.Split(lt, ";") {
				name := strings.ToUpper(strings.TrimSpace(part))
				if name != "" {
					set[name] = true
				}
			}
			if len(set) > 0 {
				sets = append(sets, set)
			}
		}
		if err := names.Err(); err != nil {
			names.Close()
			return discovered, err
		}
		names.Close()

		intersection := intersectSets(sets)
		if len(intersection) == 0 {
			continue
		}
		for name := range intersection {
			endorsementID, err := getOrCreateEndorsement(tx, name)
			if err != nil {
				return discovered, err
			}
			if err := registerCodeMapping(tx, c.code, endorsementID); err != nil {
				return discovered, err
			}
		}
		discovered++
	}
	return discovered, nil
}

func intersectSets(sets []map[string]bool) map[string]bool {
	if len(sets) == 0 {
		return nil
	}
	result := map[string]bool{}
	for name := range sets[0] {
		result[name] = true
	}
	for _, s := range sets[1:] {
		for name := range result {
			if !s[name] {
				delete(result, name)
			}
		}
	}
	return result
}

// MergeMixedCaseEndorsements migrates links from any endorsement whose name
// differs from its upper-case form to the canonical upper-case endorsement,
// creating it by rename if none exists.
func MergeMixedCaseEndorsements(tx *sql.Tx) (merged int, err error) {
	rows, err := tx.Query(`SELECT id, name FROM endorsements`)
	if err != nil {
		return 0, fmt.Errorf("list endorsements: %w", err)
	}
	type row struct {
		id   int64
		name string
	}
	var dirty []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.name); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan endorsement: %w", err)
		}
		if strings.ToUpper(r.name) != r.name {
			dirty = append(dirty, r)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, d := range dirty {
		upper := strings.ToUpper(d.name)
		var canonicalID int64
		err := tx.QueryRow(`SELECT id FROM endorsements WHERE name = ?`, upper).Scan(&canonicalID)
		switch {
		case err == nil:
			if err := migrateEndorsementLinks(tx, d.id, canonicalID); err != nil {
				return merged, err
			}
			if _, err := tx.Exec(`DELETE FROM endorsement_codes WHERE endorsement_id = ?`, d.id); err != nil {
				return merged, fmt.Errorf("delete mixed-case code mappings for %d: %w", d.id, err)
			}
			if _, err := tx.Exec(`DELETE FROM endorsements WHERE id = ?`, d.id); err != nil {
				return merged, fmt.Errorf("delete mixed-case endorsement %d: %w", d.id, err)
			}
		case err == sql.ErrNoRows:
			if _, err := tx.Exec(`UPDATE endorsements SET name = ? WHERE id = ?`, upper, d.id); err != nil {
				return merged, fmt.Errorf("rename mixed-case endorsement %d: %w", d.id, err)
			}
		default:
			return merged, fmt.Errorf("lookup canonical endorsement %q: %w", upper, err)
		}
		merged++
	}
	return merged, nil
}

// RepairCodeNameEndorsements resolves endorsements whose stored name itself
// matches the "CODE, NAME" pattern (an artifact of discovery running before
// the parser distinguished forms), migrating links to the properly-resolved
// endorsement and scrubbing spurious endorsement_codes rows whose code
// column contains whitespace.
func RepairCodeNameEndorsements(tx *sql.Tx) (repaired int, err error) {
	rows, err := tx.Query(`SELECT id, name FROM endorsements`)
	if err != nil {
		return 0, fmt.Errorf("list endorsements: %w", err)
	}
	type row struct {
		id   int64
		name string
	}
	var broken []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.name); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan endorsement: %w", err)
		}
		if codeNameForm.MatchString(r.name) {
			broken = append(broken, r)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, b := range broken {
		m := codeNameForm.FindStringSubmatch(b.name)
		code, name := m[1], strings.ToUpper(strings.TrimSpace(m[2]))

		ids, err := codeMapping(tx, code)
		if err != nil {
			return repaired, err
		}
		var realID int64
		for _, id := range ids {
			ph, err := isPlaceholder(tx, id)
			if err != nil {
				return repaired, err
			}
			if !ph && id != b.id {
				realID = id
				break
			}
		}
		if realID == 0 {
			realID, err = getOrCreateEndorsement(tx, name)
			if err != nil {
				return repaired, err
			}
			if err := registerCodeMapping(tx, code, realID); err != nil {
				return repaired, err
			}
		}
		if realID != b.id {
			if err := migrateEndorsementLinks(tx, b.id, realID); err != nil {
				return repaired, err
			}
			if _, err := tx.Exec(`DELETE FROM endorsement_codes WHERE endorsement_id = ?`, b.id); err != nil {
				return repaired, fmt.Errorf("delete code-name mapping for endorsement %d: %w", b.id, err)
			}
			if _, err := tx.Exec(`DELETE FROM endorsements WHERE id = ?`, b.id); err != nil {
				return repaired, fmt.Errorf("delete code-name endorsement %d: %w", b.id, err)
			}
		}
		repaired++
	}

	// Scrub spurious endorsement_codes rows whose code column contains
	// whitespace — an artifact of the old discovery routine running on
	// "CODE, NAME" values before the parser distinguished them.
	if _, err := tx.Exec(`DELETE FROM endorsement_codes WHERE code GLOB '* *' OR code LIKE '%'||char(9)||'%'`); err != nil {
		return repaired, fmt.Errorf("scrub spurious code mappings: %w", err)
	}
	return repaired, nil
}

// ParseCode is a small helper exposed for callers (e.g. integrity checks)
// that need to tell whether a stored value is a bare numeric code.
func ParseCode(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if !purelyDigits.MatchString(s) {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
