// Package database is the SQL Ledger Store. One implementation serves two dialects: an
// embedded SQLite file for single-node use and Oracle Autonomous Database for shared
// deployments.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/sijms/go-ora/v2"
	_ "modernc.org/sqlite"

	"propertyregistry/internal/ledger"
)

// dsn builds a properly encoded connection string for Oracle Autonomous Database
func dsn(username, password, host, port, service string, walletLocation string) string {
	if walletLocation != "" {
		// Use wallet-based mTLS connection
		return fmt.Sprintf(
			"oracle://%s:%s@%s:%s/%s?ssl=true&wallet_location=%s",
			url.PathEscape(username), url.PathEscape(password), host, port, service, url.PathEscape(walletLocation))
	}

	return (&url.URL{
		Scheme:   "oracle",
		User:     url.UserPassword(username, password), // escapes automatically
		Host:     host + ":" + port,
		Path:     "/" + service, // keep full service name
		RawQuery: "ssl=true",    // ADB requires TCPS on 1522
	}).String()
}

// sqliteDSN enables WAL and a busy timeout. Writers open with BEGIN IMMEDIATE so two
// processes sharing a file serialize instead of failing at commit.
func sqliteDSN(path string, immediate bool) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	if immediate {
		q.Set("_txlock", "immediate")
	}
	return path + "?" + q.Encode()
}

// DBConfig holds Oracle connection configuration
type DBConfig struct {
	Host           string `env:"DB_HOST" envDefault:"localhost"`
	Port           string `env:"DB_PORT" envDefault:"1521"`
	Service        string `env:"DB_SERVICE" envDefault:"XE"`
	Username       string `env:"DB_USERNAME"`
	Password       string `env:"DB_PASSWORD"`
	WalletLocation string `env:"DB_WALLET_LOCATION"`
}

// Store is a ledger.Store over database/sql.
type Store struct {
	db     *sql.DB // writes
	readDB *sql.DB // snapshots; the same handle as db on Oracle
	d      dialect
	logger *slog.Logger

	// writeMu serializes writers inside this process; the database serializes across
	// processes.
	writeMu sync.Mutex
}

var _ ledger.Store = (*Store)(nil)

// OpenSQLite opens (creating if needed) the SQLite ledger at path and applies migrations.
func OpenSQLite(path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	path = filepath.Clean(path)

	if err := migrateSQLite(sqliteDSN(path, false)); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	db, err := sql.Open(sqliteDialect.driver, sqliteDSN(path, true))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	readDB, err := sql.Open(sqliteDialect.driver, sqliteDSN(path, false))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open read connection: %w", err)
	}

	s := &Store{db: db, readDB: readDB, d: sqliteDialect, logger: logger}
	if err := s.ping(); err != nil {
		_ = s.Close()
		return nil, err
	}
	logger.Info("ledger store opened", "driver", "sqlite", "path", path)
	return s, nil
}

// OpenOracle connects to Oracle with config and ensures the schema exists.
func OpenOracle(config DBConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// Build properly encoded connection string for Oracle Autonomous Database
	connStr := dsn(config.Username, config.Password, config.Host, config.Port, config.Service, config.WalletLocation)

	logger.Info("connecting to Oracle", "host", config.Host, "service", config.Service, "wallet", config.WalletLocation != "")

	db, err := sql.Open(oracleDialect.driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	s := &Store{db: db, readDB: db, d: oracleDialect, logger: logger}
	if err := s.ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := applyOracleSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return s, nil
}

func (s *Store) ping() error {
	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close closes the database connections
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if s.readDB != s.db {
		if rerr := s.readDB.Close(); err == nil {
			err = rerr
		}
	}
	return err
}

// Update implements ledger.Store. The registry_meta row is read first, with a row lock on
// Oracle, so every writer queues on it.
func (s *Store) Update(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &txn{tx: sqlTx, d: s.d}
	if _, err := tx.meta(ctx, true); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := fn(tx); err != nil {
		if rerr := sqlTx.Rollback(); rerr != nil {
			s.logger.Warn("rollback failed", "error", rerr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// View implements ledger.Store.
func (s *Store) View(ctx context.Context, fn func(tx ledger.ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sqlTx, err := s.readDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	if s.d.viewStmt != "" {
		if _, err := sqlTx.ExecContext(ctx, s.d.viewStmt); err != nil {
			return fmt.Errorf("pin snapshot: %w", err)
		}
	}
	return fn(&txn{tx: sqlTx, d: s.d})
}
