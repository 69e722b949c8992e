package db

import "errors"

// Domain-level database error sentinels.
var (
	// Keyword pair errors
	ErrKeywordPairNotFound = errors.New("keyword pair not found")
	ErrDuplicateSource     = errors.New("keyword source already exists")
	ErrEmptySource         = errors.New("keyword source must not be empty")
)
