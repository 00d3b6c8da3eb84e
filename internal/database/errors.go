package database

import "errors"

var (
	ErrInvalidDSN       = errors.New("invalid or empty DSN")
	ErrMigrationFailed  = errors.New("migration failed")
	ErrConnectionFailed = errors.New("database connection failed")
)
