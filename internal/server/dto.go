package server

import (
	"time"

	"github.com/jsgaviriam/checkout/internal/domain"
)

// transactionDTO — внешнее представление транзакции.
type transactionDTO struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	AmountInCents int64     `json:"amount_in_cents"`
	Currency      string    `json:"currency"`
	ProductID     string    `json:"product_id"`
	Reference     string    `json:"reference"`
	ExternalID    string    `json:"external_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toTransactionDTO(tx domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:            tx.ID,
		Status:        string(tx.Status),
		AmountInCents: tx.AmountInCents,
		Currency:      tx.Currency,
		ProductID:     tx.ProductID,
		Reference:     tx.Reference,
		ExternalID:    tx.ExternalID,
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
	}
}

// productDTO — внешнее представление товара каталога.
type productDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	PriceInCents int64  `json:"price_in_cents"`
	Currency     string `json:"currency"`
	Stock        int64  `json:"stock"`
	CategoryID   string `json:"category_id,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
}

func toProductDTO(p domain.Product) productDTO {
	return productDTO{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		PriceInCents: p.PriceInCents,
		Currency:     p.Currency,
		Stock:        p.Stock,
		CategoryID:   p.CategoryID,
		ImageURL:     p.ImageURL,
	}
}

func toProductDTOs(items []domain.Product) []productDTO {
	out := make([]productDTO, 0, len(items))
	for _, p := range items {
		out = append(out, toProductDTO(p))
	}
	return out
}

// categoryDTO — внешнее представление категории.
type categoryDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func toCategoryDTO(c domain.Category) categoryDTO {
	return categoryDTO{ID: c.ID, Name: c.Name}
}
