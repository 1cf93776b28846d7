package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgClassIntegrity      = "23"
	pgClassDataException  = "22"
)

// classify переводит ошибку драйвера в таксономию domain.
// Нарушения ограничений и ошибки данных (переполнение, неверный формат) отвергают
// саму запись; всё остальное считается недоступностью хранилища.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %w", domain.ErrDuplicateIdentity, err)
	case isConstraintViolation(err):
		return fmt.Errorf("%w: %w", domain.ErrConstraintViolation, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

func isConstraintViolation(err error) bool {
	if isForeignKeyViolation(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) != 5 {
			return false
		}
		class := pgErr.Code[:2]
		return class == pgClassIntegrity || class == pgClassDataException
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint || liteErr.Code == sqlite3.ErrMismatch
	}
	return false
}

// rollback откатывает транзакцию после ошибки. Сбой отката не глотается,
// а присоединяется к исходной ошибке.
func rollback(tx *sql.Tx, cause error) error {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.Join(cause, fmt.Errorf("rollback: %w", err))
	}
	return cause
}
