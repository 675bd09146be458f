package domain

import "errors"

// Record errors
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrValidation     = errors.New("validation failed")
	ErrInvalidLink    = errors.New("invalid storage link")
	ErrSchemaMismatch = errors.New("column does not exist")
)
