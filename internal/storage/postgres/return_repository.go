package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

type returnRepository struct {
	db *sql.DB
}

// NewReturnRepository создаёт PostgreSQL-реализацию ReturnRepository.
func NewReturnRepository(store *Store) domain.ReturnRepository {
	return &returnRepository{db: store.DB()}
}

func (r *returnRepository) Create(ctx context.Context, rr domain.ReturnRequest) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO return_requests (
			id, order_id, user_id, status, refund_minor,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		rr.ID, rr.OrderID, rr.UserID, string(rr.Status), rr.RefundMinor,
		rr.Version, rr.CreatedAt, rr.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert return request: %w", err)
	}

	for _, item := range rr.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO return_items (
				return_id, order_item_id, product_id, qty, reason, condition
			) VALUES ($1,$2,$3,$4,$5,$6)
		`,
			rr.ID, item.OrderItemID, item.ProductID, item.Qty, item.Reason, item.Condition,
		); err != nil {
			return fmt.Errorf("insert return item: %w", err)
		}
	}

	for _, entry := range rr.History {
		if err = insertReturnHistory(ctx, tx, rr.ID, entry); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create return: %w", err)
	}

	return nil
}

func (r *returnRepository) Get(ctx context.Context, id string) (domain.ReturnRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rr, err := scanReturn(r.db.QueryRowContext(ctx, `
		SELECT id, order_id, user_id, status, refund_minor,
		       version, created_at, updated_at
		FROM return_requests
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ReturnRequest{}, domain.ErrReturnNotFound
		}
		return domain.ReturnRequest{}, fmt.Errorf("select return request: %w", err)
	}

	if rr.Items, err = loadReturnItems(ctx, r.db, rr.ID); err != nil {
		return domain.ReturnRequest{}, err
	}
	if rr.History, err = loadHistory(ctx, r.db, "return_history", "return_id", rr.ID); err != nil {
		return domain.ReturnRequest{}, err
	}

	return rr, nil
}

func (r *returnRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.ReturnRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT id, order_id, user_id, status, refund_minor,
		       version, created_at, updated_at
		FROM return_requests
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", userID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list return requests: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ReturnRequest, 0)
	for rows.Next() {
		rr, err := scanReturn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan return row: %w", err)
		}

		if rr.Items, err = loadReturnItems(ctx, r.db, rr.ID); err != nil {
			return nil, err
		}
		if rr.History, err = loadHistory(ctx, r.db, "return_history", "return_id", rr.ID); err != nil {
			return nil, err
		}
		result = append(result, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate return rows: %w", err)
	}

	return result, nil
}

// Save обновляет заявку с optimistic locking, дописывает запись журнала и,
// если передано outbox-сообщение, вставляет его той же транзакцией.
// Смена статуса и постановка события в очередь публикации либо фиксируются
// вместе, либо не происходят вовсе.
func (r *returnRepository) Save(ctx context.Context, rr domain.ReturnRequest, entry domain.HistoryEntry, outbox *domain.OutboxMessage) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = saveReturnTx(ctx, tx, rr, entry)
	if err != nil {
		return err
	}

	if outbox != nil {
		if err = enqueueOutboxTx(ctx, tx, *outbox); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save return: %w", err)
	}

	return nil
}

// saveReturnTx — общая часть Save и транзакции расчёта возмещения.
func saveReturnTx(ctx context.Context, tx *sql.Tx, rr domain.ReturnRequest, entry domain.HistoryEntry) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE return_requests
		SET status = $1,
		    refund_minor = $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $4
		  AND version = $5
	`,
		string(rr.Status),
		rr.RefundMinor,
		rr.UpdatedAt,
		rr.ID,
		rr.Version,
	)
	if err != nil {
		return fmt.Errorf("update return request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := rowExists(ctx, tx, `SELECT id FROM return_requests WHERE id = $1`, rr.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrReturnNotFound
		}
		return domain.ErrVersionConflict
	}

	// Condition заполняется инспекцией: переносим оценку состояния в позиции.
	for _, item := range rr.Items {
		if _, err := tx.ExecContext(ctx, `
			UPDATE return_items
			SET condition = $1
			WHERE return_id = $2
			  AND order_item_id = $3
		`, item.Condition, rr.ID, item.OrderItemID); err != nil {
			return fmt.Errorf("update return item condition: %w", err)
		}
	}

	return insertReturnHistory(ctx, tx, rr.ID, entry)
}

func insertReturnHistory(ctx context.Context, db dbtx, returnID string, entry domain.HistoryEntry) error {
	if _, err := db.ExecContext(ctx, `
		INSERT INTO return_history (return_id, status, actor, comment, occurred_at)
		VALUES ($1,$2,$3,$4,$5)
	`, returnID, entry.Status, entry.Actor, entry.Comment, entry.Occurred); err != nil {
		return fmt.Errorf("insert return history: %w", err)
	}
	return nil
}

func enqueueOutboxTx(ctx context.Context, tx *sql.Tx, msg domain.OutboxMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,'pending',0,$6,$7)
	`,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, now, now,
	); err != nil {
		return fmt.Errorf("enqueue outbox message: %w", err)
	}

	return nil
}

func scanReturn(row rowScanner) (domain.ReturnRequest, error) {
	var (
		rr     domain.ReturnRequest
		status string
	)

	if err := row.Scan(
		&rr.ID, &rr.OrderID, &rr.UserID, &status, &rr.RefundMinor,
		&rr.Version, &rr.CreatedAt, &rr.UpdatedAt,
	); err != nil {
		return domain.ReturnRequest{}, err
	}

	rr.Status = domain.ReturnStatus(status)
	return rr, nil
}

func loadReturnItems(ctx context.Context, db dbtx, returnID string) ([]domain.ReturnItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT order_item_id, product_id, qty, reason, condition
		FROM return_items
		WHERE return_id = $1
		ORDER BY id ASC
	`, returnID)
	if err != nil {
		return nil, fmt.Errorf("load return items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.ReturnItem, 0)
	for rows.Next() {
		var item domain.ReturnItem
		if err := rows.Scan(&item.OrderItemID, &item.ProductID, &item.Qty, &item.Reason, &item.Condition); err != nil {
			return nil, fmt.Errorf("scan return item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate return items: %w", err)
	}

	return items, nil
}

var _ domain.ReturnRepository = (*returnRepository)(nil)
