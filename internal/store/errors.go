package store

import (
	"database/sql"
	"errors"

	"github.com/MohamedNashad/seafood-node-api/internal/apperr"

	"github.com/lib/pq"
)

// PostgreSQL error codes
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

var errNoRows = sql.ErrNoRows

// mapError translates driver errors into application errors for entity
func mapError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFoundf("%s not found", entity).WithCause(err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return apperr.Conflictf("%s already exists", entity).
				WithField("constraint", pqErr.Constraint).WithCause(err)
		case pqForeignKeyViolation:
			return apperr.Conflictf("%s is referenced by other records", entity).
				WithField("constraint", pqErr.Constraint).WithCause(err)
		case pqCheckViolation:
			return apperr.Conflictf("%s violates constraint %s", entity, pqErr.Constraint).WithCause(err)
		}
	}
	return err
}
