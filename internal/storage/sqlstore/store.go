package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

var (
	errNotInitialized       = errors.New("sql store is not initialized")
	errSQLiteForeignKeysOff = errors.New("sqlite foreign keys are disabled by dsn")
)

// Dialect определяет SQL-диалект и драйвер хранилища.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect разбирает имя диалекта из конфигурации.
func ParseDialect(name string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(name))) {
	case DialectPostgres:
		return DialectPostgres, nil
	case DialectSQLite:
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported sql dialect: %q", name)
	}
}

func (d Dialect) driverName() string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return "pgx"
}

func (d Dialect) placeholder() sq.PlaceholderFormat {
	if d == DialectSQLite {
		return sq.Question
	}
	return sq.Dollar
}

// txOptions задаёт уровень изоляции записи. SQLite сериализует писателей через
// BEGIN IMMEDIATE (параметр _txlock в DSN), уровень изоляции драйверу не передаём.
func (d Dialect) txOptions() *sql.TxOptions {
	if d == DialectSQLite {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
}

// Store оборачивает SQL-подключение к реляционному хранилищу.
type Store struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
}

// Open открывает подключение и проверяет доступность базы.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if _, err := ParseDialect(string(dialect)); err != nil {
		return nil, err
	}

	if dialect == DialectSQLite {
		dsn = withSQLiteForeignKeys(dsn)
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", dialect, err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
	if dialect == DialectSQLite && isSQLiteMemoryDSN(dsn) {
		// Каждое соединение с :memory: открывает отдельную базу.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		if err := checkSQLiteForeignKeys(pingCtx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Store{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(dialect.placeholder()),
	}, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect возвращает диалект хранилища.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isSQLiteMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// withSQLiteForeignKeys включает проверку внешних ключей, если DSN её не задаёт.
// SQLite по умолчанию их не проверяет, а на них держится целостность ссылок заказа.
func withSQLiteForeignKeys(dsn string) string {
	_, query, hasQuery := strings.Cut(dsn, "?")
	if hasQuery {
		params, err := url.ParseQuery(query)
		if err == nil && (params.Has("_fk") || params.Has("_foreign_keys")) {
			return dsn
		}
		return dsn + "&_fk=1"
	}
	return dsn + "?_fk=1"
}

// checkSQLiteForeignKeys отказывается работать с базой, где внешние ключи выключены явно.
func checkSQLiteForeignKeys(ctx context.Context, db *sql.DB) error {
	var enabled int
	if err := db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("read sqlite foreign_keys: %w", err)
	}
	if enabled != 1 {
		return errSQLiteForeignKeysOff
	}
	return nil
}
