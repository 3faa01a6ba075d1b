package entities

import (
	"database/sql"
	"fmt"
	"strings"

	"lcbregistry/internal/model"
)

// getOrCreate looks up an entity by its cleaned name, creating it (with a
// freshly classified entity_type) if absent.
func getOrCreate(tx *sql.Tx, cleanedName string) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM entities WHERE name = ?`, cleanedName).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup entity %q: %w", cleanedName, err)
	}

	res, err := tx.Exec(`
		INSERT INTO entities (name, entity_type) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING
	`, cleanedName, string(Classify(cleanedName)))
	if err != nil {
		return 0, fmt.Errorf("insert entity %q: %w", cleanedName, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return res.LastInsertId()
	}
	if err := tx.QueryRow(`SELECT id FROM entities WHERE name = ?`, cleanedName).Scan(&id); err != nil {
		return 0, fmt.Errorf("re-read entity %q after insert race: %w", cleanedName, err)
	}
	return id, nil
}

// LinkApplicants splits the already-cleaned applicants string on ';', skips
// the first element (always the business name), and links each remaining
// nonempty name as an entity with role and contiguous position. Duplicate
// (record, entity, role) junction rows are silently ignored.
func LinkApplicants(tx *sql.Tx, recordID int64, cleanedApplicants string, role model.EntityRole) error {
	parts := strings.Split(cleanedApplicants, ";")
	position := 0
	for i, raw := range parts {
		if i == 0 {
			continue // business name
		}
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		entityID, err := getOrCreate(tx, name)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO record_entities (record_id, entity_id, role, position)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(record_id, entity_id, role) DO NOTHING
		`, recordID, entityID, string(role), position)
		if err != nil {
			return fmt.Errorf("link entity %q to record %d: %w", name, recordID, err)
		}
		position++
	}
	return nil
}

// MergeDuplicates runs inside a single write transaction: for every entity
// whose stored name differs from its cleaned form, find (or rename into) the
// canonical cleaned-name entity, migrate junction rows (keeping the lower
// position on conflict), and delete the dirty duplicate.
func MergeDuplicates(tx *sql.Tx) (merged int, err error) {
	rows, err := tx.Query(`SELECT id, name FROM entities`)
	if err != nil {
		return 0, fmt.Errorf("list entities: %w", err)
	}
	type dirty struct {
		id   int64
		name string
	}
	var candidates []dirty
	for rows.Next() {
		var d dirty
		if err := rows.Scan(&d.id, &d.name); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan entity: %w", err)
		}
		if Clean(d.name) != d.name {
			candidates = append(candidates, d)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate entities: %w", err)
	}
	rows.Close()

	for _, d := range candidates {
		cleaned := Clean(d.name)
		if cleaned == "" {
			continue
		}
		var canonicalID int64
		err := tx.QueryRow(`SELECT id FROM entities WHERE name = ?`, cleaned).Scan(&canonicalID)
		switch {
		case err == nil:
			if err := migrateEntityJunctions(tx, d.id, canonicalID); err != nil {
				return merged, err
			}
			if _, err := tx.Exec(`DELETE FROM entities WHERE id = ?`, d.id); err != nil {
				return merged, fmt.Errorf("delete dirty entity %d: %w", d.id, err)
			}
		case err == sql.ErrNoRows:
			if _, err := tx.Exec(`UPDATE entities SET name = ? WHERE id = ?`, cleaned, d.id); err != nil {
				return merged, fmt.Errorf("rename entity %d: %w", d.id, err)
			}
		default:
			return merged, fmt.Errorf("lookup canonical entity %q: %w", cleaned, err)
		}
		merged++
	}
	return merged, nil
}

// migrateEntityJunctions moves record_entities rows from the dirty entity to
// the canonical one. On a (record_id, canonical_entity_id, role) conflict,
// the lower position wins.
func migrateEntityJunctions(tx *sql.Tx, dirtyID, canonicalID int64) error {
	rows, err := tx.Query(`SELECT record_id, role, position FROM record_entities WHERE entity_id = ?`, dirtyID)
	if err != nil {
		return fmt.Errorf("list junctions for entity %d: %w", dirtyID, err)
	}
	type junction struct {
		recordID int64
		role     string
		position int
	}
	var junctions []junction
	for rows.Next() {
		var j junction
		if err := rows.Scan(&j.recordID, &j.role, &j.position); err != nil {
			rows.Close()
			return fmt.Errorf("scan junction: %w", err)
		}
		junctions = append(junctions, j)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate junctions: %w", err)
	}
	rows.Close()

	for _, j := range junctions {
		var existingPos int
		err := tx.QueryRow(`
			SELECT position FROM record_entities WHERE record_id = ? AND entity_id = ? AND role = ?
		`, j.recordID, canonicalID, j.role).Scan(&existingPos)
		switch {
		case err == sql.ErrNoRows:
			if _, err := tx.Exec(`
				INSERT INTO record_entities (record_id, entity_id, role, position) VALUES (?, ?, ?, ?)
			`, j.recordID, canonicalID, j.role, j.position); err != nil {
				return fmt.Errorf("migrate junction record=%d entity=%d: %w", j.recordID, canonicalID, err)
			}
		case err == nil:
			if j.position < existingPos {
				if _, err := tx.Exec(`
					UPDATE record_entities SET position = ? WHERE record_id = ? AND entity_id = ? AND role = ?
				`, j.position, j.recordID, canonicalID, j.role); err != nil {
					return fmt.Errorf("lower conflicting position record=%d entity=%d: %w", j.recordID, canonicalID, err)
				}
			}
		default:
			return fmt.Errorf("check conflicting junction record=%d entity=%d: %w", j.recordID, canonicalID, err)
		}
		if _, err := tx.Exec(`DELETE FROM record_entities WHERE record_id = ? AND entity_id = ? AND role = ?`,
			j.recordID, dirtyID, j.role); err != nil {
			return fmt.Errorf("delete stale junction record=%d entity=%d: %w", j.recordID, dirtyID, err)
		}
	}
	return nil
}
