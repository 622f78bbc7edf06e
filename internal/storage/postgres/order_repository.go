package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Create вставляет заказ, позиции и первую запись журнала, списывая сток по
// каждой позиции условной записью. Всё выполняется одной транзакцией:
// конфликт по любой позиции откатывает и заказ, и уже прошедшие списания.
func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
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
		INSERT INTO orders (
			id, user_id, status,
			items_minor, tax_minor, shipping_minor, total_minor,
			payment_ref, courier, tracking_ref, delivered_at,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		order.ID, order.UserID, string(order.Status),
		order.ItemsMinor, order.TaxMinor, order.ShippingMinor, order.TotalMinor,
		order.PaymentRef, order.Courier, order.TrackingRef, order.DeliveredAt,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if err = debitStock(ctx, tx, item.ProductID, item.Size, item.Qty); err != nil {
			return err
		}

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, size, qty, price_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			item.ID, order.ID, item.ProductID, item.Size, item.Qty, item.PriceMinor, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	for _, entry := range order.History {
		if err = insertOrderHistory(ctx, tx, order.ID, entry); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, status,
		       items_minor, tax_minor, shipping_minor, total_minor,
		       payment_ref, courier, tracking_ref, delivered_at,
		       version, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	if order.Items, err = r.loadItems(ctx, order.ID); err != nil {
		return domain.Order{}, err
	}
	if order.History, err = loadHistory(ctx, r.db, "order_history", "order_id", order.ID); err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT id, user_id, status,
		       items_minor, tax_minor, shipping_minor, total_minor,
		       payment_ref, courier, tracking_ref, delivered_at,
		       version, created_at, updated_at
		FROM orders
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
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}

		if order.Items, err = r.loadItems(ctx, order.ID); err != nil {
			return nil, err
		}
		if order.History, err = loadHistory(ctx, r.db, "order_history", "order_id", order.ID); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

// Save обновляет заказ с optimistic locking и дописывает запись журнала в
// той же транзакции.
func (r *orderRepository) Save(ctx context.Context, order domain.Order, entry domain.HistoryEntry) error {
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

	err = saveOrderTx(ctx, tx, order, entry)
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save order: %w", err)
	}

	return nil
}

// saveOrderTx — общая часть Save и транзакции расчёта возмещения.
func saveOrderTx(ctx context.Context, tx *sql.Tx, order domain.Order, entry domain.HistoryEntry) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    courier = $2,
		    tracking_ref = $3,
		    delivered_at = $4,
		    version = version + 1,
		    updated_at = $5
		WHERE id = $6
		  AND version = $7
	`,
		string(order.Status),
		order.Courier,
		order.TrackingRef,
		order.DeliveredAt,
		order.UpdatedAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := rowExists(ctx, tx, `SELECT id FROM orders WHERE id = $1`, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrVersionConflict
	}

	return insertOrderHistory(ctx, tx, order.ID, entry)
}

func insertOrderHistory(ctx context.Context, db dbtx, orderID string, entry domain.HistoryEntry) error {
	if _, err := db.ExecContext(ctx, `
		INSERT INTO order_history (order_id, status, actor, comment, occurred_at)
		VALUES ($1,$2,$3,$4,$5)
	`, orderID, entry.Status, entry.Actor, entry.Comment, entry.Occurred); err != nil {
		return fmt.Errorf("insert order history: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order       domain.Order
		status      string
		deliveredAt sql.NullTime
	)

	if err := row.Scan(
		&order.ID, &order.UserID, &status,
		&order.ItemsMinor, &order.TaxMinor, &order.ShippingMinor, &order.TotalMinor,
		&order.PaymentRef, &order.Courier, &order.TrackingRef, &deliveredAt,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}

	order.Status = domain.OrderStatus(status)
	if deliveredAt.Valid {
		delivered := deliveredAt.Time.UTC()
		order.DeliveredAt = &delivered
	}

	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	return loadOrderItems(ctx, r.db, orderID)
}

func loadOrderItems(ctx context.Context, db dbtx, orderID string) ([]domain.OrderItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, product_id, size, qty, price_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Size, &item.Qty, &item.PriceMinor, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

// loadHistory читает append-only журнал заказа или возврата.
func loadHistory(ctx context.Context, db dbtx, table, fkColumn, id string) ([]domain.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT status, actor, comment, occurred_at
		FROM %s
		WHERE %s = $1
		ORDER BY occurred_at ASC, id ASC
	`, table, fkColumn), id)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()

	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(&entry.Status, &entry.Actor, &entry.Comment, &entry.Occurred); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}

	return entries, nil
}

func rowExists(ctx context.Context, db dbtx, query, id string) (bool, error) {
	var found string
	err := db.QueryRowContext(ctx, query, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check row exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
