package query

import (
	"context"
	"database/sql"
	"fmt"
)

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Querier is the read side of *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Run counts the rows of from matching p and returns one page of them.
// from may be a table name or a join; columns and orderBy are trusted SQL.
func Run[T any](ctx context.Context, db Querier, from, columns, orderBy string, p Params, scan func(Scanner) (T, error)) ([]T, int, error) {
	var total int
	//nolint:gosec // where holds placeholders only
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+from+" WHERE "+p.Where, p.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", from, err)
	}

	args := make([]any, 0, len(p.Args)+2)
	args = append(args, p.Args...)
	args = append(args, p.Limit, p.Offset)

	//nolint:gosec // where holds placeholders only
	rows, err := db.QueryContext(ctx,
		"SELECT "+columns+" FROM "+from+" WHERE "+p.Where+" ORDER BY "+orderBy+" LIMIT ? OFFSET ?",
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", from, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, item)
	}
	return out, total, rows.Err()
}

// All returns every row matching where, unpaginated.
func All[T any](ctx context.Context, db Querier, from, columns, where, orderBy string, args []any, scan func(Scanner) (T, error)) ([]T, error) {
	if where == "" {
		where = "1=1"
	}
	//nolint:gosec // where holds placeholders only
	rows, err := db.QueryContext(ctx, "SELECT "+columns+" FROM "+from+" WHERE "+where+" ORDER BY "+orderBy, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", from, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
