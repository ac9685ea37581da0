package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jsgaviriam/checkout/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

type seedProduct struct {
	name         string
	priceInCents int64
	stock        int64
	category     string
}

// Каталог колумбийского продуктового магазина; цены в центавос.
var products = []seedProduct{
	{"Arroz Diana 1kg", 450000, 50, "Abarrotes"},
	{"Lentejas La Muñeca 500g", 380000, 45, "Abarrotes"},
	{"Fríjoles Cargamanto 500g", 420000, 40, "Abarrotes"},
	{"Aceite Premier 1000ml", 1250000, 30, "Abarrotes"},
	{"Sal Refisal 1000g", 280000, 60, "Abarrotes"},
	{"Azúcar Manuelita 1000g", 390000, 55, "Abarrotes"},
	{"Harina PAN 1kg", 670000, 35, "Abarrotes"},
	{"Pasta Doria Spaghetti 500g", 490000, 45, "Abarrotes"},
	{"Salsa de Tomate Fruco 400g", 520000, 40, "Abarrotes"},
	{"Pan Bimbo Grande", 620000, 35, "Panadería"},
	{"Cereal Zucaritas 500g", 1499000, 22, "Cereales"},
	{"Avena Quaker 500g", 680000, 40, "Cereales"},
	{"Café Sello Rojo 500g", 1380000, 25, "Bebidas"},
	{"Chocolate Corona 250g", 870000, 32, "Bebidas"},
	{"Leche Alquería 1L", 480000, 60, "Bebidas"},
	{"Agua Cristal 600ml", 220000, 80, "Bebidas"},
	{"Jugo Hit Mango 1L", 560000, 35, "Bebidas"},
	{"Coca-Cola 1.5L", 780000, 50, "Bebidas"},
	{"Postobón Manzana 1.5L", 720000, 45, "Bebidas"},
	{"Galletas Festival Chocolate", 380000, 70, "Snacks"},
	{"Galletas Saltín Noel 9 und", 520000, 50, "Snacks"},
	{"Papas Margarita Natural 160g", 790000, 30, "Snacks"},
	{"Chocoramo Individual", 350000, 60, "Snacks"},
	{"Jet Chocolate 12 und", 980000, 25, "Snacks"},
	{"Queso Campesino Alpina 250g", 1699000, 25, "Lácteos"},
	{"Mantequilla La Fina 250g", 980000, 40, "Lácteos"},
	{"Yogurt Alpina Fresa 1L", 1250000, 35, "Lácteos"},
	{"Huevos Kikes 30 und", 1650000, 20, "Huevos"},
	{"Detergente Ariel 2kg", 2199000, 18, "Aseo Hogar"},
	{"Jabón Rey Barra x3", 890000, 50, "Aseo Hogar"},
	{"Suavitel Fresca Primavera 1L", 990000, 25, "Aseo Hogar"},
	{"Clorox Tradicional 1L", 720000, 40, "Aseo Hogar"},
	{"Papel Higiénico Familia 12 und", 1899000, 40, "Aseo Hogar"},
	{"Servilletas Familia 100 und", 630000, 55, "Aseo Hogar"},
	{"Shampoo Savital Sábila 550ml", 1180000, 25, "Cuidado Personal"},
	{"Crema Dental Colgate Triple Acción 150ml", 790000, 45, "Cuidado Personal"},
	{"Desodorante Rexona Men 150ml", 1290000, 30, "Cuidado Personal"},
	{"Jabón Protex 3 und", 990000, 35, "Cuidado Personal"},
	{"Jamón Zenú Tradicional 200g", 1350000, 28, "Cárnicos"},
	{"Salchichas Ranchera 500g", 1650000, 30, "Cárnicos"},
	{"Tocineta Zenú 250g", 1899000, 20, "Cárnicos"},
	{"Banano (kg)", 350000, 40, "Frutas y Verduras"},
	{"Tomate Chonto (kg)", 420000, 35, "Frutas y Verduras"},
	{"Papa Criolla (kg)", 550000, 30, "Frutas y Verduras"},
	{"Cebolla Cabezona (kg)", 490000, 25, "Frutas y Verduras"},
}

func main() {
	var dsn string
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: CHECKOUT_POSTGRES_DSN)")
	flag.Parse()

	_ = godotenv.Load()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("CHECKOUT_POSTGRES_DSN"))
	}
	if dsn == "" {
		fail("CHECKOUT_POSTGRES_DSN (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		fail("ensure schema: %v", err)
	}

	if err := seed(ctx, store.DB()); err != nil {
		fail("seed failed: %v", err)
	}
	fmt.Println("seeds completados con éxito")
}

// seed вставляет категории и товары; существующие записи не трогает,
// поэтому повторный запуск безопасен.
func seed(ctx context.Context, db *sql.DB) error {
	categoryIDs := map[string]string{}

	for _, p := range products {
		if _, ok := categoryIDs[p.category]; ok {
			continue
		}
		var id string
		err := db.QueryRowContext(ctx, `
            INSERT INTO categories (name) VALUES ($1)
            ON CONFLICT (name) DO UPDATE SET updated_at = categories.updated_at
            RETURNING id`, p.category).Scan(&id)
		if err != nil {
			return fmt.Errorf("категория %q: %w", p.category, err)
		}
		categoryIDs[p.category] = id
		fmt.Printf("категория %s (%s)\n", p.category, id)
	}

	for _, p := range products {
		res, err := db.ExecContext(ctx, `
            INSERT INTO products (name, price_in_cents, currency, stock, category_id)
            SELECT $1, $2, 'COP', $3, $4
            WHERE NOT EXISTS (SELECT 1 FROM products WHERE name = $1)`,
			p.name, p.priceInCents, p.stock, categoryIDs[p.category])
		if err != nil {
			return fmt.Errorf("товар %q: %w", p.name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			fmt.Printf("добавлен %s\n", p.name)
		} else {
			fmt.Printf("уже существует %s\n", p.name)
		}
	}
	return nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
