package domain

import "errors"

// Repository-level sentinels. Services translate these into structured errors.
var (
	ErrNotFound               = errors.New("not found")
	ErrNoRowsAffected         = errors.New("no rows affected")
	ErrDuplicateVersionNumber = errors.New("version number already taken")
	ErrAlreadyExists          = errors.New("already exists")
	ErrAlreadyPublished       = errors.New("version already published")
)
