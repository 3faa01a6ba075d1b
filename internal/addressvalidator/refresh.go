package addressvalidator

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"lcbregistry/internal/locations"
	"lcbregistry/internal/regerr"
)

// RefreshOptions configures a bulk address-standardization pass.
type RefreshOptions struct {
	// Concurrency bounds how many in-flight Standardize calls the worker
	// pool runs; the validator's own rate limiter still serializes the
	// actual outbound requests.
	Concurrency int
	// OnlyUnvalidated restricts the pass to locations with no
	// address_validated_at timestamp yet.
	OnlyUnvalidated bool
}

// Result summarizes a bulk refresh pass.
type Result struct {
	Standardized int
	NoMatch      int
	Failed       int
}

// Refresh standardizes every qualifying location, writing results back
// inside their own short transaction per location so one failure can't roll
// back work already committed.
func Refresh(ctx context.Context, db *sql.DB, v Validator, opts RefreshOptions) (Result, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	query := `SELECT id, raw_address FROM locations`
	if opts.OnlyUnvalidated {
		query += ` WHERE address_validated_at IS NULL`
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("list locations: %w", err)
	}
	type loc struct {
		id  int64
		raw string
	}
	var locs []loc
	for rows.Next() {
		var l loc
		if err := rows.Scan(&l.id, &l.raw); err != nil {
			rows.Close()
			return Result{}, fmt.Errorf("scan location: %w", err)
		}
		locs = append(locs, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return Result{}, err
	}
	rows.Close()

	var result Result
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, l := range locs {
		l := l
		g.Go(func() error {
			std, err := v.Standardize(gctx, l.raw)
			if err != nil {
				if err == regerr.ErrValidatorUnavailable {
					return err // no point continuing the pool if misconfigured
				}
				mu.Lock()
				result.Failed++
				mu.Unlock()
				return nil
			}
			if std == nil {
				mu.Lock()
				result.NoMatch++
				mu.Unlock()
				return nil
			}

			tx, err := db.BeginTx(gctx, nil)
			if err != nil {
				return fmt.Errorf("begin standardize transaction for location %d: %w", l.id, err)
			}
			if err := locations.Standardize(tx, l.id, std.AddressLine1, std.AddressLine2, std.City, std.State, std.ZipCode); err != nil {
				tx.Rollback()
				return err
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit standardize for location %d: %w", l.id, err)
			}
			mu.Lock()
			result.Standardized++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}
