package errors

import (
	stderrs "errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE classes the cursor store can run into
const (
	pgClassDataException       = "22"
	pgClassIntegrityConstraint = "23"
	pgClassInsufficientRes     = "53"
	pgClassOperatorIntervene   = "57"
	pgErrReadOnlySQLTx         = "25006"
)

// DBErrorCode classifies a Postgres error by SQLSTATE. ok is false when err is not from Postgres
func DBErrorCode(err error) (code ErrorCode, ok bool) {
	var pgErr *pgconn.PgError
	if !stderrs.As(err, &pgErr) {
		return ErrorCodeUnknown, false
	}
	if pgErr.Code == pgErrReadOnlySQLTx {
		return ErrorCodeUnavailable, true
	}
	if len(pgErr.Code) < 2 {
		return ErrorCodeDB, true
	}
	switch pgErr.Code[:2] {
	case pgClassDataException, pgClassIntegrityConstraint:
		return ErrorCodeInvalidArgument, true
	case pgClassInsufficientRes, pgClassOperatorIntervene:
		return ErrorCodeUnavailable, true
	default:
		// includes class 40 rollbacks
		return ErrorCodeDB, true
	}
}

// FromPostgres wraps err with msg and the code DBErrorCode picks; nil stays nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	code, _ := DBErrorCode(err)
	if code == ErrorCodeUnknown {
		code = ErrorCodeDB
	}
	return Wrap(err, code, msg)
}
