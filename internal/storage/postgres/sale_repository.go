package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	saleNumberConstraint = "sales_number_key"
)

type saleRepository struct {
	db *sql.DB
}

// NewSaleRepository создаёт PostgreSQL-реализацию SaleRepository.
func NewSaleRepository(store *Store) domain.SaleRepository {
	return &saleRepository{db: store.DB()}
}

func (r *saleRepository) Create(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, number, branch_id, customer_id, status, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		sale.ID, sale.Number, sale.BranchID, sale.CustomerID,
		string(sale.Status), sale.Version, sale.CreatedAt, sale.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, saleNumberConstraint) {
			return domain.Sale{}, domain.ErrSaleNumberConflict
		}
		return domain.Sale{}, fmt.Errorf("insert sale: %w", err)
	}

	if err = insertItemsTx(ctx, tx, sale.ID, sale.Items); err != nil {
		return domain.Sale{}, err
	}

	if err = tx.Commit(); err != nil {
		return domain.Sale{}, fmt.Errorf("commit create sale: %w", err)
	}

	return sale, nil
}

func (r *saleRepository) Update(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET branch_id = $1,
		    customer_id = $2,
		    status = $3,
		    version = version + 1,
		    updated_at = $4
		WHERE id = $5
		  AND version = $6
	`,
		sale.BranchID,
		sale.CustomerID,
		string(sale.Status),
		sale.UpdatedAt,
		sale.ID,
		sale.Version,
	)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("update sale: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Sale{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, existsErr := saleExistsTx(ctx, tx, sale.ID)
		if existsErr != nil {
			err = existsErr
			return domain.Sale{}, existsErr
		}
		if !exists {
			err = domain.ErrSaleNotFound
			return domain.Sale{}, domain.ErrSaleNotFound
		}
		err = domain.ErrSaleVersionConflict
		return domain.Sale{}, domain.ErrSaleVersionConflict
	}

	// Позиции живут только внутри агрегата, поэтому их проще
	// перезаписать целиком, чем диффить построчно.
	if _, err = tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, sale.ID); err != nil {
		return domain.Sale{}, fmt.Errorf("delete sale items: %w", err)
	}
	if err = insertItemsTx(ctx, tx, sale.ID, sale.Items); err != nil {
		return domain.Sale{}, err
	}

	if err = tx.Commit(); err != nil {
		return domain.Sale{}, fmt.Errorf("commit update sale: %w", err)
	}

	sale.Version++
	return sale, nil
}

func (r *saleRepository) Get(ctx context.Context, id string) (domain.Sale, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var sale domain.Sale
	var status string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, number, branch_id, customer_id, status, version, created_at, updated_at
		FROM sales
		WHERE id = $1
	`, id).Scan(
		&sale.ID, &sale.Number, &sale.BranchID, &sale.CustomerID,
		&status, &sale.Version, &sale.CreatedAt, &sale.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sale{}, domain.ErrSaleNotFound
		}
		return domain.Sale{}, fmt.Errorf("select sale: %w", err)
	}
	sale.Status = domain.SaleStatus(status)

	items, err := r.loadItems(ctx, sale.ID)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.Items = items

	return sale, nil
}

func (r *saleRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Sale, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT id, number, branch_id, customer_id, status, version, created_at, updated_at
		FROM sales
		WHERE customer_id = $1
		ORDER BY created_at DESC, number DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", customerID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0)
	for rows.Next() {
		var sale domain.Sale
		var status string
		if err := rows.Scan(
			&sale.ID, &sale.Number, &sale.BranchID, &sale.CustomerID,
			&status, &sale.Version, &sale.CreatedAt, &sale.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sale row: %w", err)
		}
		sale.Status = domain.SaleStatus(status)

		items, err := r.loadItems(ctx, sale.ID)
		if err != nil {
			return nil, err
		}
		sale.Items = items
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale rows: %w", err)
	}

	return sales, nil
}

func (r *saleRepository) LastNumber(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var last int64
	if err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(number), 0) FROM sales
	`).Scan(&last); err != nil {
		return 0, fmt.Errorf("select last sale number: %w", err)
	}
	return last, nil
}

func (r *saleRepository) loadItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, quantity, price, canceled, created_at
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY created_at ASC, id ASC
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(
			&item.ID, &item.ProductID, &item.Quantity,
			&item.Price, &item.Canceled, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale items: %w", err)
	}

	return items, nil
}

func insertItemsTx(ctx context.Context, tx *sql.Tx, saleID string, items []domain.SaleItem) error {
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (
				id, sale_id, product_id, quantity, price, canceled, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			item.ID, saleID, item.ProductID, item.Quantity,
			item.Price, item.Canceled, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert sale item: %w", err)
		}
	}
	return nil
}

func saleExistsTx(ctx context.Context, tx *sql.Tx, saleID string) (bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM sales WHERE id = $1`, saleID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check sale exists: %w", err)
}

// isUniqueViolation проверяет нарушение уникальности. Если constraint задан,
// проверяется совпадение имени; пустой constraint матчит любое нарушение.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

var _ domain.SaleRepository = (*saleRepository)(nil)
