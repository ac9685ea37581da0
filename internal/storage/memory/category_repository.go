package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jsgaviriam/checkout/internal/domain"
)

// categoryRepositoryInMemory — in-memory реализация CategoryRepository.
type categoryRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Category
}

// NewCategoryRepository создаёт in-memory реализацию CategoryRepository.
func NewCategoryRepository() *categoryRepositoryInMemory {
	return &categoryRepositoryInMemory{
		items: make(map[string]domain.Category),
	}
}

// Seed добавляет категорию (используется в тестах и dev-режиме).
func (r *categoryRepositoryInMemory) Seed(c domain.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[c.ID] = c
}

// FindAll возвращает категории, отсортированные по имени.
func (r *categoryRepositoryInMemory) FindAll(_ context.Context) ([]domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Category, 0, len(r.items))
	for _, c := range r.items {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// FindByID возвращает категорию или ErrCategoryNotFound.
func (r *categoryRepositoryInMemory) FindByID(_ context.Context, id string) (domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.items[id]
	if !ok {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	return c, nil
}

var _ domain.CategoryRepository = (*categoryRepositoryInMemory)(nil)
