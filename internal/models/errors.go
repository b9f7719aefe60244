package models

import "errors"

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConditionNotMet is returned when a conditional update matched no row,
	// e.g. a debit against an empty balance.
	ErrConditionNotMet = errors.New("condition not met")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("duplicate")
)
