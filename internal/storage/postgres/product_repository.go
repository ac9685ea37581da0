package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jsgaviriam/checkout/internal/domain"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

const productColumns = `id, name, COALESCE(description,''), price_in_cents, currency, stock, COALESCE(category_id::text,''), COALESCE(image_url,''), created_at, updated_at`

// FindAll возвращает все товары каталога, отсортированные по имени.
func (r *productRepository) FindAll(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// FindByID возвращает товар или ErrProductNotFound.
func (r *productRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return p, nil
}

// Search возвращает страницу товаров по подстроке имени (case-insensitive).
func (r *productRepository) Search(ctx context.Context, q domain.ProductListQuery) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	limit, offset := pageBounds(q)

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		ORDER BY name ASC, id ASC
		LIMIT $2 OFFSET $3
	`, q.Q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// FindByCategory возвращает страницу товаров категории.
func (r *productRepository) FindByCategory(ctx context.Context, categoryID string, q domain.ProductListQuery) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	limit, offset := pageBounds(q)

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE category_id = $1
		ORDER BY name ASC, id ASC
		LIMIT $2 OFFSET $3
	`, categoryID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list products by category: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// DecreaseStock списывает qty единиц с остатка одного товара.
// Строка блокируется через SELECT ... FOR UPDATE, остаток перечитывается уже
// под блокировкой: конкурентные списания не могут увидеть один и тот же остаток.
func (r *productRepository) DecreaseStock(ctx context.Context, id string, qty int64) error {
	if qty <= 0 {
		return domain.ErrQtyInvalid
	}

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

	var stock int64
	err = tx.QueryRowContext(ctx, `
		SELECT stock
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrProductNotFound
			return err
		}
		return fmt.Errorf("lock product row: %w", err)
	}

	if stock < qty {
		err = domain.ErrOutOfStock
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $1,
		    updated_at = $2
		WHERE id = $3
	`, qty, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("decrease stock: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit stock decrement: %w", err)
	}

	return nil
}

func pageBounds(q domain.ProductListQuery) (limit, offset int) {
	limit = q.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}

func scanProduct(row *sql.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.PriceInCents, &p.Currency,
		&p.Stock, &p.CategoryID, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.PriceInCents, &p.Currency,
			&p.Stock, &p.CategoryID, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
