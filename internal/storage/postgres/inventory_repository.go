package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

// dbtx покрывает и *sql.DB, и *sql.Tx: хелперы работы со стоком вызываются
// как сами по себе, так и внутри транзакций заказа и расчёта.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type inventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository создаёт PostgreSQL-реализацию InventoryRepository.
func NewInventoryRepository(store *Store) domain.InventoryRepository {
	return &inventoryRepository{db: store.DB()}
}

func (r *inventoryRepository) Adjust(ctx context.Context, productID, size string, delta int32) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if delta < 0 {
		return debitStock(ctx, r.db, productID, size, -delta)
	}
	return creditStock(ctx, r.db, productID, size, delta)
}

func (r *inventoryRepository) Get(ctx context.Context, productID string) ([]domain.ProductStock, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, size, qty
		FROM product_stock
		WHERE product_id = $1
		ORDER BY size
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("select product stock: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ProductStock, 0)
	for rows.Next() {
		var stock domain.ProductStock
		if err := rows.Scan(&stock.ProductID, &stock.Size, &stock.Qty); err != nil {
			return nil, fmt.Errorf("scan product stock: %w", err)
		}
		result = append(result, stock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product stock: %w", err)
	}
	if len(result) == 0 {
		return nil, domain.ErrStockNotFound
	}

	return result, nil
}

func (r *inventoryRepository) Put(ctx context.Context, stock domain.ProductStock) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO product_stock (product_id, size, qty, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (product_id, size)
		DO UPDATE SET qty = EXCLUDED.qty, updated_at = NOW()
	`, stock.ProductID, stock.Size, stock.Qty)
	if err != nil {
		return fmt.Errorf("upsert product stock: %w", err)
	}

	return nil
}

// debitStock выполняет условное списание: строка меняется только если
// остатка хватает, иначе возвращается *StockConflictError. Проверка и запись
// — одно атомарное выражение, read-modify-write здесь исключён.
func debitStock(ctx context.Context, db dbtx, productID, size string, qty int32) error {
	res, err := db.ExecContext(ctx, `
		UPDATE product_stock
		SET qty = qty - $3,
		    updated_at = NOW()
		WHERE product_id = $1
		  AND size = $2
		  AND qty >= $3
	`, productID, size, qty)
	if err != nil {
		return fmt.Errorf("debit stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit stock rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.StockConflictError{ProductID: productID, Size: size, Requested: qty}
	}

	return nil
}

// creditStock безусловно увеличивает остаток, заводя строку при необходимости.
func creditStock(ctx context.Context, db dbtx, productID, size string, qty int32) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO product_stock (product_id, size, qty, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (product_id, size)
		DO UPDATE SET qty = product_stock.qty + EXCLUDED.qty, updated_at = NOW()
	`, productID, size, qty)
	if err != nil {
		return fmt.Errorf("credit stock: %w", err)
	}

	return nil
}

var _ domain.InventoryRepository = (*inventoryRepository)(nil)
