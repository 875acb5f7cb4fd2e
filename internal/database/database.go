package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	apperrors "dashchat/internal/errors"
	"dashchat/internal/migrations"
	"dashchat/internal/validation"

	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	db        *sql.DB
	encryptor *encryptor
	now       func() time.Time
}

// New opens the sqlite database at dbPath, creating the file if needed, and
// brings the schema up to date.
func New(dbPath string) (*Database, error) {
	if err := validation.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	closeWith := func(err error, msg string) error {
		if closeErr := db.Close(); closeErr != nil {
			return fmt.Errorf("%s: %w (close error: %v)", msg, err, closeErr)
		}
		return fmt.Errorf("%s: %w", msg, err)
	}

	if err := db.Ping(); err != nil {
		return nil, closeWith(err, "failed to ping database")
	}

	if err := migrations.RunMigrations(db); err != nil {
		return nil, closeWith(err, "failed to initialize schema")
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		return nil, closeWith(err, "failed to initialize encryptor")
	}

	return &Database{db: db, encryptor: encryptor, now: time.Now}, nil
}

// SetPoolLimits applies connection pool settings.
func (d *Database) SetPoolLimits(maxOpen, maxIdle int) {
	d.db.SetMaxOpenConns(maxOpen)
	d.db.SetMaxIdleConns(maxIdle)
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Ping checks that the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseConnection, "database unreachable")
	}
	return nil
}

func (d *Database) timestamp() time.Time {
	return d.now().UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
