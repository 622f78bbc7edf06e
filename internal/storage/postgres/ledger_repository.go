package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

type ledgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository создаёт PostgreSQL-реализацию LedgerRepository.
func NewLedgerRepository(store *Store) domain.LedgerRepository {
	return &ledgerRepository{db: store.DB()}
}

func (r *ledgerRepository) FindSuccessfulRefund(ctx context.Context, returnID string) (domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, `
		SELECT id, type, status, amount_minor, ref_kind, ref_id, gateway_ref, created_at
		FROM ledger_transactions
		WHERE type = 'refund'
		  AND status = 'success'
		  AND ref_kind = $1
		  AND ref_id = $2
	`, string(domain.RefKindReturn), returnID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, domain.ErrLedgerEntryNotFound
		}
		return domain.Transaction{}, fmt.Errorf("select successful refund: %w", err)
	}

	return tx, nil
}

func (r *ledgerRepository) ListByRef(ctx context.Context, ref domain.LedgerRef) ([]domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, status, amount_minor, ref_kind, ref_id, gateway_ref, created_at
		FROM ledger_transactions
		WHERE ref_kind = $1
		  AND ref_id = $2
		ORDER BY created_at ASC, id ASC
	`, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("list ledger transactions: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger transaction: %w", err)
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger transactions: %w", err)
	}

	return result, nil
}

// insertLedgerTx вставляет неизменяемую запись леджера в рамках транзакции
// вызывающего. Вторая успешная refund-запись по тому же возврату упирается в
// частичный уникальный индекс и транслируется в ErrDuplicateRefund.
func insertLedgerTx(ctx context.Context, db dbtx, tx domain.Transaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO ledger_transactions (
			id, type, status, amount_minor, ref_kind, ref_id, gateway_ref, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		tx.ID, string(tx.Type), string(tx.Status), tx.AmountMinor,
		string(tx.Ref.Kind), tx.Ref.ID, tx.GatewayRef, tx.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateRefund
		}
		return fmt.Errorf("insert ledger transaction: %w", err)
	}

	return nil
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		tx      domain.Transaction
		txType  string
		status  string
		refKind string
	)

	if err := row.Scan(
		&tx.ID, &txType, &status, &tx.AmountMinor,
		&refKind, &tx.Ref.ID, &tx.GatewayRef, &tx.CreatedAt,
	); err != nil {
		return domain.Transaction{}, err
	}

	tx.Type = domain.TransactionType(txType)
	tx.Status = domain.TransactionStatus(status)
	tx.Ref.Kind = domain.RefKind(refKind)

	return tx, nil
}

var _ domain.LedgerRepository = (*ledgerRepository)(nil)
