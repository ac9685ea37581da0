package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jsgaviriam/checkout/internal/domain"
)

// productRepositoryInMemory — in-memory реализация ProductRepository.
// Мьютекс сериализует DecreaseStock, играя роль row-level блокировки Postgres.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewProductRepository() *productRepositoryInMemory {
	return &productRepositoryInMemory{
		items: make(map[string]domain.Product),
	}
}

// Seed добавляет товар в каталог (используется в тестах и dev-режиме).
func (r *productRepositoryInMemory) Seed(p domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID] = p
}

// FindAll возвращает все товары, отсортированные по имени.
func (r *productRepositoryInMemory) FindAll(_ context.Context) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.items))
	for _, p := range r.items {
		result = append(result, p)
	}
	sortProducts(result)
	return result, nil
}

// FindByID возвращает товар или ErrProductNotFound, если его нет.
func (r *productRepositoryInMemory) FindByID(_ context.Context, id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// Search возвращает страницу товаров, имя которых содержит q (без учёта регистра).
func (r *productRepositoryInMemory) Search(_ context.Context, q domain.ProductListQuery) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(q.Q))
	result := make([]domain.Product, 0)
	for _, p := range r.items {
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		result = append(result, p)
	}
	sortProducts(result)
	return paginateProducts(result, q.Page, q.Limit), nil
}

// FindByCategory возвращает страницу товаров категории.
func (r *productRepositoryInMemory) FindByCategory(_ context.Context, categoryID string, q domain.ProductListQuery) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0)
	for _, p := range r.items {
		if p.CategoryID != categoryID {
			continue
		}
		result = append(result, p)
	}
	sortProducts(result)
	return paginateProducts(result, q.Page, q.Limit), nil
}

// DecreaseStock списывает qty единиц с остатка одного товара.
// Проверка остатка и запись выполняются под одним захватом мьютекса:
// два конкурентных списания не могут увидеть один и тот же остаток.
func (r *productRepositoryInMemory) DecreaseStock(_ context.Context, id string, qty int64) error {
	if qty <= 0 {
		return domain.ErrQtyInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if p.Stock < qty {
		return domain.ErrOutOfStock
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now().UTC()
	r.items[id] = p
	return nil
}

func sortProducts(products []domain.Product) {
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].ID < products[j].ID
	})
}

func paginateProducts(products []domain.Product, page, limit int) []domain.Product {
	if limit <= 0 {
		return products
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(products) {
		return []domain.Product{}
	}
	end := start + limit
	if end > len(products) {
		end = len(products)
	}
	return products[start:end]
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
