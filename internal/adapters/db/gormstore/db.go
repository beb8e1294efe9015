// Package gormstore persists the enty catalog, fact log and access tables
// through gorm, on SQLite or PostgreSQL.
package gormstore

import (
	"database/sql"
	"strings"

	"github.com/Sevewell/enty/internal/domain"
	apperrors "github.com/Sevewell/enty/internal/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the configured database. SQLite connections get foreign
// key enforcement and a busy timeout unless the DSN already sets pragmas.
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	}

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		db, err := gorm.Open(sqlite.Dialector{
			DriverName: "sqlite",
			DSN:        sqliteDSN(dsn),
		}, cfg)
		if err != nil {
			return nil, err
		}
		// A single connection keeps writers serialized on the file.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
		return db, nil
	case DriverPostgres:
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, apperrors.Newf("unsupported database driver %q", driver)
	}
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func dialectOf(db *gorm.DB) string {
	if db.Dialector.Name() == DriverPostgres {
		return DriverPostgres
	}
	return DriverSQLite
}

func nullDate(d *domain.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func datePtr(ns sql.NullString) *domain.Date {
	if !ns.Valid {
		return nil
	}
	var d domain.Date
	if err := d.Scan(ns.String); err != nil || d.IsZero() {
		return nil
	}
	return &d
}

func notFound(err error, what string) error {
	if apperrors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(what)
	}
	return err
}
