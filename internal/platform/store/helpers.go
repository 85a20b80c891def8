package store

import "context"

// Scalar reads the first column of the first row into T
func Scalar[T any](ctx context.Context, q SQL, sql string, args ...any) (T, error) {
	var v T
	if err := q.QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
