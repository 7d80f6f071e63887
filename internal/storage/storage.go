// Package storage keeps vault accounts in SQLite or PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	// Используем драйвер для PostgreSQL
	_ "github.com/lib/pq"
	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/vova4o/otpexport/internal/models"
	"github.com/vova4o/otpexport/package/logger"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ErrUnsupportedDriver is returned for drivers other than sqlite3 and postgres
var ErrUnsupportedDriver = errors.New("unsupported database driver")

var placeholder = regexp.MustCompile(`\$\d+`)

// Storage struct
type Storage struct {
	db     *sql.DB
	driver string
	logger *logger.Logger
}

// NewStorage открывает базу данных и создает таблицы хранилища
func NewStorage(ctx context.Context, driver, dsn string, logger *logger.Logger) (*Storage, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "otpexport.db"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	// Проверка соединения
	if err := db.PingContext(ctx); err != nil {
		logger.Error("Failed to connect to the database: " + err.Error())
		db.Close()
		return nil, err
	}

	storage := &Storage{
		db:     db,
		driver: driver,
		logger: logger,
	}

	if err := storage.createTables(ctx); err != nil {
		logger.Error("Failed to create tables: " + err.Error())
		db.Close()
		return nil, err
	}

	logger.Info("Vault database initialized successfully")
	return storage, nil
}

func (s *Storage) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS vault_meta (
            id INTEGER PRIMARY KEY,
            master_password_hash TEXT NOT NULL,
            salt TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS accounts (
            id VARCHAR(36) PRIMARY KEY,
            position INTEGER NOT NULL,
            issuer TEXT NOT NULL,
            name TEXT NOT NULL,
            otp_type INTEGER NOT NULL,
            algorithm INTEGER NOT NULL,
            digits INTEGER NOT NULL,
            period INTEGER NOT NULL,
            counter BIGINT NOT NULL,
            sealed_secret TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_position ON accounts(position)`,
	}

	for _, query := range queries {
		_, err := s.db.ExecContext(ctx, query)
		if err != nil {
			return err
		}
	}

	return nil
}

// rebind переводит плейсхолдеры $N в ? для SQLite
func (s *Storage) rebind(query string) string {
	if s.driver != DriverSQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?")
}

// GetMasterKey возвращает хеш мастер-пароля и соль, nil если хранилище новое
func (s *Storage) GetMasterKey(ctx context.Context) (*models.MasterKey, error) {
	query := s.rebind(`SELECT master_password_hash, salt FROM vault_meta WHERE id = $1`)
	var key models.MasterKey
	err := s.db.QueryRowContext(ctx, query, 1).Scan(&key.Hash, &key.Salt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("Master password not set")
			return nil, nil
		}
		s.logger.Error("Failed to read master password: " + err.Error())
		return nil, err
	}
	return &key, nil
}

// StoreMasterKey сохраняет хеш мастер-пароля и соль
func (s *Storage) StoreMasterKey(ctx context.Context, key models.MasterKey) error {
	query := s.rebind(`INSERT INTO vault_meta (id, master_password_hash, salt) VALUES ($1, $2, $3)`)
	_, err := s.db.ExecContext(ctx, query, 1, key.Hash, key.Salt)
	if err != nil {
		s.logger.Error("Failed to store master password: " + err.Error())
		return err
	}

	s.logger.Info("Master password stored successfully")
	return nil
}

// SaveAccounts appends accounts after the last stored position in one
// transaction. Positions of the argument are ignored.
func (s *Storage) SaveAccounts(ctx context.Context, accounts []models.StoredAccount) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction: " + err.Error())
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	var last int
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) FROM accounts`).Scan(&last)
	if err != nil {
		s.logger.Error("Failed to read last position: " + err.Error())
		return err
	}

	query := s.rebind(`INSERT INTO accounts (id, position, issuer, name, otp_type, algorithm, digits, period, counter, sealed_secret, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
	now := time.Now().UTC()
	for i, a := range accounts {
		createdAt := a.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := tx.ExecContext(ctx, query, a.ID, last+1+i, a.Issuer, a.Name, int(a.OtpType), int(a.Algorithm),
			a.Digits, a.Period, int64(a.Counter), a.SealedSecret, createdAt)
		if err != nil {
			s.logger.Error("Failed to insert account: " + err.Error())
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit accounts: " + err.Error())
		return err
	}

	s.logger.Infof("Saved %d accounts", len(accounts))
	return nil
}

// ListAccounts returns all accounts ordered by position.
func (s *Storage) ListAccounts(ctx context.Context) ([]models.StoredAccount, error) {
	query := `SELECT id, position, issuer, name, otp_type, algorithm, digits, period, counter, sealed_secret, created_at
        FROM accounts ORDER BY position`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.logger.Error("Failed to list accounts: " + err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []models.StoredAccount
	for rows.Next() {
		var (
			a            models.StoredAccount
			otpType, alg int
			counter      int64
		)
		err := rows.Scan(&a.ID, &a.Position, &a.Issuer, &a.Name, &otpType, &alg,
			&a.Digits, &a.Period, &counter, &a.SealedSecret, &a.CreatedAt)
		if err != nil {
			s.logger.Error("Failed to scan account: " + err.Error())
			return nil, err
		}
		a.OtpType = models.OtpType(otpType)
		a.Algorithm = models.Algorithm(alg)
		a.Counter = uint64(counter)
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		s.logger.Error("Rows error: " + err.Error())
		return nil, err
	}

	return accounts, nil
}

// DeleteAccount удаляет учетную запись по ID
func (s *Storage) DeleteAccount(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM accounts WHERE id = $1`), id)
	if err != nil {
		s.logger.Error("Failed to delete account: " + err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close закрывает соединение с базой данных
func (s *Storage) Close() error {
	return s.db.Close()
}
