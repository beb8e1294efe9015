package gormstore

import (
	"context"
	"embed"
	"fmt"
	"strings"

	apperrors "github.com/Sevewell/enty/internal/errors"
	"github.com/Sevewell/enty/internal/logger"
	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// gooseLogger sends goose progress lines to the service logger instead of
// stdout.
type gooseLogger struct {
	log *logger.Logger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.log.SugaredLogger.Fatalf(strings.TrimSpace(format), v...)
}

// RunMigrations applies the embedded migrations for the connection's
// dialect. A nil log discards goose output.
func RunMigrations(ctx context.Context, db *gorm.DB, log *logger.Logger) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if log == nil {
		log = logger.Nop()
	}

	dialect, dir := "sqlite3", "migrations/sqlite"
	if dialectOf(db) == DriverPostgres {
		dialect, dir = "postgres", "migrations/postgres"
	}

	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	goose.SetLogger(gooseLogger{log: log.With("dialect", dialect)})
	goose.SetBaseFS(migrationsFS)
	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return apperrors.Wrapf(err, "migrate %s", dialect)
	}

	return nil
}
