package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidKind = errors.New("invalid account kind")
)

const pgForeignKeyViolation = "23503"

type PgJobBoardRepository struct {
	conn *sql.DB
}

func NewPgJobBoardRepository(dsn string) (*PgJobBoardRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	return &PgJobBoardRepository{conn: db}, nil
}

func (db *PgJobBoardRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *PgJobBoardRepository) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Migrate applies the embedded schema migrations to the database at dsn.
func Migrate(dsn string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "load migrations")
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return errors.Wrap(err, "init migrate")
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

func profileTable(kind types.AccountKind) (string, error) {
	switch kind {
	case types.AccountJobSeeker:
		return "job_seekers", nil
	case types.AccountCompany:
		return "companies", nil
	}
	return "", errors.Wrapf(ErrInvalidKind, "%q", kind)
}

func notificationTable(kind types.AccountKind) (string, error) {
	switch kind {
	case types.AccountJobSeeker:
		return "user_notifications", nil
	case types.AccountCompany:
		return "company_notifications", nil
	}
	return "", errors.Wrapf(ErrInvalidKind, "%q", kind)
}

func unreadColumn(kind types.AccountKind) (string, error) {
	switch kind {
	case types.AccountJobSeeker:
		return "user_unread", nil
	case types.AccountCompany:
		return "company_unread", nil
	}
	return "", errors.Wrapf(ErrInvalidKind, "%q", kind)
}

// mapError translates driver errors into repository errors.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation {
		return errors.Wrap(ErrNotFound, pqErr.Constraint)
	}
	return errors.Wrap(err, op)
}

func placeholder(args *[]any, v any) string {
	*args = append(*args, v)
	return fmt.Sprintf("$%d", len(*args))
}
