package domain

import "time"

// Product описывает товар каталога. Поле Stock мутирует только Stock Ledger
// (операция DecreaseStock), общие update-операции по каталогу не предусмотрены.
type Product struct {
	ID          string
	Name        string
	Description string
	// PriceInCents — цена в минимальных денежных единицах (центавос).
	PriceInCents int64
	Currency     string
	Stock        int64
	CategoryID   string
	ImageURL     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasStock проверяет, хватает ли остатка для списания qty единиц.
func (p *Product) HasStock(qty int64) bool {
	return p.Stock >= qty
}

// Category описывает категорию каталога.
type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
