// Package pipeline drives raw records through natural-key dedup, cleaning,
// entity/endorsement linking, and outcome discovery as one ingestion unit.
package pipeline

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lcbregistry/internal/endorsements"
	"lcbregistry/internal/model"
	"lcbregistry/internal/outcomes"
	"lcbregistry/internal/queries"
)

// IngestOptions configures a batch ingest run.
type IngestOptions struct {
	// BatchSize is the number of records committed per transaction. A value
	// <= 0 commits the whole batch in one transaction.
	BatchSize int
	// RunDiscovery, when true, runs endorsement code discovery and outcome
	// linking once at the end of the batch.
	RunDiscovery bool
}

// Result summarizes one ingest run.
type Result struct {
	Inserted int
	Skipped  int
	Failed   int
	Errors   []error
}

// IngestRecord inserts a single raw record inside an already-open
// transaction. It does not run discovery or outcome linking — callers doing
// one-off inserts should call those separately if needed.
func IngestRecord(tx *sql.Tx, raw model.RawRecord, scrapedAt time.Time) (recordID int64, inserted bool, err error) {
	return queries.InsertRecord(tx, raw, scrapedAt)
}

// IngestBatch ingests records in natural-key order, committing every
// BatchSize records (or once at the end, if BatchSize <= 0). A single
// record's failure is logged and counted but does not abort the batch — the
// chunk's transaction carries on with the next record, and whatever the
// failed record wrote before its error is committed with the chunk.
func IngestBatch(db *sql.DB, logger *zap.Logger, records []model.RawRecord, scrapedAt time.Time, opts IngestOptions) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = len(records)
	}
	if batchSize == 0 {
		return Result{}, nil
	}

	var result Result
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		if err := ingestChunk(db, logger, chunk, scrapedAt, &result); err != nil {
			return result, fmt.Errorf("ingest chunk [%d:%d): %w", start, end, err)
		}
	}

	if opts.RunDiscovery {
		if err := runDiscoveryPass(db, logger); err != nil {
			return result, fmt.Errorf("post-batch discovery: %w", err)
		}
	}

	return result, nil
}

func ingestChunk(db *sql.DB, logger *zap.Logger, chunk []model.RawRecord, scrapedAt time.Time, result *Result) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin chunk transaction: %w", err)
	}

	for _, raw := range chunk {
		_, inserted, err := queries.InsertRecord(tx, raw, scrapedAt)
		if err != nil {
			logger.Warn("record ingest failed",
				zap.String("section", raw["section"]),
				zap.String("license_number", raw["license_number"]),
				zap.Error(err),
			)
			result.Failed++
			result.Errors = append(result.Errors, err)
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk: %w", err)
	}
	return nil
}

// runDiscoveryPass runs endorsement code discovery followed by outcome
// linking, each in its own transaction so a failure in one doesn't roll back
// the other.
func runDiscoveryPass(db *sql.DB, logger *zap.Logger) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin discovery transaction: %w", err)
	}
	discovered, err := endorsements.DiscoverCodeMappings(tx)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("discover code mappings: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit discovery: %w", err)
	}
	logger.Info("endorsement code discovery complete", zap.Int("discovered", discovered))

	tx, err = db.Begin()
	if err != nil {
		return fmt.Errorf("begin link transaction: %w", err)
	}
	linked, err := outcomes.BuildAllLinks(tx)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("build outcome links: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outcome links: %w", err)
	}
	logger.Info("outcome linking complete", zap.Int("linked", linked))
	return nil
}
