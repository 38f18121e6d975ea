package repository

import (
	"database/sql"
	"errors"
)

var (
	// ErrNotFound is returned by mutations whose target row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrCodeTaken is returned when an insert loses the uniqueness race on access_codes.code.
	ErrCodeTaken = errors.New("access code already taken")
	// ErrAlreadyRevoked is returned when revoking a code that is already inactive.
	ErrAlreadyRevoked = errors.New("access code already revoked")
)

// HandleNotFound processes a database query result, converting sql.ErrNoRows
// to a nil result without error. This is a common pattern for Find* operations
// where a missing row is not an error condition.
//
// Usage:
//
//	var item model.Item
//	err := r.db.GetContext(ctx, &item, query, args...)
//	return HandleNotFound(&item, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
