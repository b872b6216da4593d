package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/payrun-hq/payrunner/pkg/models"
	"github.com/payrun-hq/payrunner/pkg/provider"
)

// PostgresStore is the durable payment ledger. Rows are inserted and
// patched, never deleted.
type PostgresStore struct {
	db *sqlx.DB
}

var _ provider.Ledger = (*PostgresStore)(nil)

// NewPostgresStore connects to Postgres and verifies the connection
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %v", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing connection (tests)
func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping reports database reachability for readiness checks
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// SavePaymentRecord inserts one ledger row
func (s *PostgresStore) SavePaymentRecord(ctx context.Context, record *models.PaymentRecord) (provider.SaveResult, error) {
	query := `
		INSERT INTO payments (
			id, obligation_id, chain_id, token, token_address, token_decimals,
			amount, recipient_address, tx_hash, intent_id, deposit_tx_hash,
			solver_tx_hash, status, created_at, updated_at
		) VALUES (
			:id, :obligation_id, :chain_id, :token, :token_address, :token_decimals,
			:amount, :recipient_address, :tx_hash, :intent_id, :deposit_tx_hash,
			:solver_tx_hash, :status, :created_at, :updated_at
		)
	`
	if _, err := s.db.NamedExecContext(ctx, query, record); err != nil {
		return provider.SaveResult{}, fmt.Errorf("failed to insert payment record: %v", err)
	}
	return provider.SaveResult{Success: true, Record: record}, nil
}

// GetPaymentByIntentID fetches the ledger row for an intent id. A missing
// row returns (nil, nil), not an error.
func (s *PostgresStore) GetPaymentByIntentID(ctx context.Context, intentID string) (*models.PaymentRecord, error) {
	if intentID == "" {
		return nil, nil
	}

	var record models.PaymentRecord
	query := `SELECT * FROM payments WHERE intent_id = $1 ORDER BY created_at DESC LIMIT 1`
	err := s.db.GetContext(ctx, &record, query, intentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment by intent id: %v", err)
	}
	return &record, nil
}

// UpdatePayment patches the mutable fields of a ledger row
func (s *PostgresStore) UpdatePayment(ctx context.Context, id string, patch models.PaymentPatch) error {
	query := `
		UPDATE payments SET
			tx_hash         = COALESCE($2, tx_hash),
			deposit_tx_hash = COALESCE($3, deposit_tx_hash),
			solver_tx_hash  = COALESCE($4, solver_tx_hash),
			status          = COALESCE($5, status),
			updated_at      = $6
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id,
		patch.TxHash, patch.DepositTxHash, patch.SolverTxHash, patch.Status,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update payment %s: %v", id, err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("payment %s not found", id)
	}
	return nil
}
