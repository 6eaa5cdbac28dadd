package repositories

import "errors"

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("stored version does not match")
	ErrDuplicateKey    = errors.New("record already exists")
)
