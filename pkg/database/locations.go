package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Location is one indexed dataset row. Null columns mean the CSV cell
// did not parse; they round-trip so API clients can tell "zero" from
// "unknown".
type Location struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Lat        sql.NullFloat64 `json:"-"`
	Lon        sql.NullFloat64 `json:"-"`
	Population sql.NullFloat64 `json:"-"`
}

// Filter restricts a locations query. Zero values disable a predicate,
// mirroring the form semantics on the map page.
type Filter struct {
	MinPop     sql.NullInt64
	Keyword    string
	Name       string
	StartAfter int64
	Limit      int
}

// Replace swaps the table contents for a freshly loaded dataset inside
// one transaction, so API readers either see the old rows or the new
// ones, never a half-imported mix.
func (db *Database) Replace(ctx context.Context, rows []Location) error {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM locations`); err != nil {
		return fmt.Errorf("clear locations: %w", err)
	}

	placeholder := newPlaceholderGenerator(db.Driver)
	insert := fmt.Sprintf(
		`INSERT INTO locations (id, name, lat, lon, population) VALUES (%s, %s, %s, %s, %s)`,
		placeholder(), placeholder(), placeholder(), placeholder(), placeholder(),
	)

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		id := row.ID
		if id == 0 {
			id = db.NextID()
		}
		if _, err := stmt.ExecContext(ctx, id, row.Name, row.Lat, row.Lon, row.Population); err != nil {
			return fmt.Errorf("insert location %q: %w", row.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// Count returns the number of indexed rows.
func (db *Database) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count locations: %w", err)
	}
	return n, nil
}

// DistinctNames returns the sorted distinct non-empty names.
func (db *Database) DistinctNames(ctx context.Context) ([]string, error) {
	rows, err := db.DB.QueryContext(ctx,
		`SELECT DISTINCT name FROM locations WHERE name <> '' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("distinct names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate names: %w", err)
	}
	return names, nil
}

// Stream pushes filtered rows over a channel so handlers can encode
// responses progressively instead of buffering whole pages.
//
// The numeric predicate runs in SQL; the two name predicates run in Go
// while draining the cursor, because LIKE/ILIKE behavior differs enough
// between sqlite, genji and postgres that a portable query is not worth
// the dialect table.
func (db *Database) Stream(ctx context.Context, f Filter) (<-chan Location, <-chan error) {
	results := make(chan Location)
	errs := make(chan error, 1)

	go func() {
		defer close(results)
		defer close(errs)

		limit := f.Limit
		if limit <= 0 {
			// A conservative default page so naive clients cannot ask
			// for the world by accident.
			limit = 100
		}

		query, args := buildLocationsQuery(f, db.Driver)
		rows, err := db.DB.QueryContext(ctx, query, args...)
		if err != nil {
			errs <- fmt.Errorf("query locations: %w", err)
			return
		}
		defer rows.Close()

		sent := 0
		for rows.Next() {
			var loc Location
			if err := rows.Scan(&loc.ID, &loc.Name, &loc.Lat, &loc.Lon, &loc.Population); err != nil {
				errs <- fmt.Errorf("scan location: %w", err)
				return
			}
			if !matchesNameFilters(loc.Name, f) {
				continue
			}
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case results <- loc:
			}
			sent++
			if sent >= limit {
				break
			}
		}

		if err := rows.Err(); err != nil {
			errs <- fmt.Errorf("iterate locations: %w", err)
			return
		}
		errs <- nil
	}()

	return results, errs
}

// buildLocationsQuery assembles the SQL side of a Stream call. Split out
// as a pure function so the dialect handling is testable without a
// driver.
func buildLocationsQuery(f Filter, driver string) (string, []any) {
	placeholder := newPlaceholderGenerator(driver)

	conditions := []string{fmt.Sprintf("id > %s", placeholder())}
	args := []any{f.StartAfter}

	if f.MinPop.Valid {
		conditions = append(conditions, fmt.Sprintf("population >= %s", placeholder()))
		args = append(args, f.MinPop.Int64)
	}

	query := fmt.Sprintf(`SELECT id, name, lat, lon, population
FROM locations
WHERE %s
ORDER BY id`, strings.Join(conditions, " AND "))
	return query, args
}

// matchesNameFilters applies the keyword and exact-name predicates with
// the same semantics as the map page: case-insensitive substring and
// case-folded equality.
func matchesNameFilters(name string, f Filter) bool {
	if f.Keyword != "" {
		if name == "" || !strings.Contains(strings.ToLower(name), strings.ToLower(f.Keyword)) {
			return false
		}
	}
	if f.Name != "" && !strings.EqualFold(name, f.Name) {
		return false
	}
	return true
}

// newPlaceholderGenerator yields ?-style placeholders for the file
// engines and $n for PostgreSQL.
func newPlaceholderGenerator(driver string) func() string {
	if normalizeDriver(driver) == "pgx" {
		counter := 0
		return func() string {
			counter++
			return fmt.Sprintf("$%d", counter)
		}
	}
	return func() string { return "?" }
}
