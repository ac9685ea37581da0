package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jsgaviriam/checkout/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type transactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository создаёт PostgreSQL-реализацию TransactionRepository.
func NewTransactionRepository(store *Store) domain.TransactionRepository {
	return &transactionRepository{db: store.DB()}
}

// Save вставляет транзакцию или перезаписывает её по id (upsert).
// Конфликт по уникальной reference с другой транзакцией возвращает ErrTransactionExists.
func (r *transactionRepository) Save(ctx context.Context, tx domain.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, status, amount_in_cents, currency, product_id, reference, external_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,$9)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    external_id = COALESCE(EXCLUDED.external_id, transactions.external_id),
		    updated_at = EXCLUDED.updated_at
	`,
		tx.ID, string(tx.Status), tx.AmountInCents, tx.Currency,
		tx.ProductID, tx.Reference, tx.ExternalID, tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrTransactionExists
		}
		return fmt.Errorf("upsert transaction: %w", err)
	}

	return nil
}

// FindByID возвращает транзакцию или ErrTransactionNotFound.
func (r *transactionRepository) FindByID(ctx context.Context, id string) (domain.Transaction, error) {
	return r.findWhere(ctx, `id = $1`, id)
}

// FindByReference возвращает транзакцию по уникальной ссылке мерчанта.
func (r *transactionRepository) FindByReference(ctx context.Context, reference string) (domain.Transaction, error) {
	return r.findWhere(ctx, `reference = $1`, reference)
}

func (r *transactionRepository) findWhere(ctx context.Context, where string, arg any) (domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		tx         domain.Transaction
		status     string
		externalID sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, status, amount_in_cents, currency, product_id, reference, external_id, created_at, updated_at
		FROM transactions
		WHERE `+where, arg).Scan(
		&tx.ID, &status, &tx.AmountInCents, &tx.Currency,
		&tx.ProductID, &tx.Reference, &externalID, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, domain.ErrTransactionNotFound
		}
		return domain.Transaction{}, fmt.Errorf("select transaction: %w", err)
	}

	tx.Status = domain.Status(status)
	if externalID.Valid {
		tx.ExternalID = externalID.String
	}

	return tx, nil
}

// SetStatus напрямую обновляет статус и external_id транзакции.
func (r *transactionRepository) SetStatus(ctx context.Context, id string, status domain.Status, externalID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1,
		    external_id = COALESCE(NULLIF($2,''), external_id),
		    updated_at = $3
		WHERE id = $4
	`, string(status), externalID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transaction rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrTransactionNotFound
	}

	return nil
}

// TransitionToTerminal переводит транзакцию из PENDING в терминальный статус.
// Условие status = 'PENDING' в WHERE и есть весь compare-and-set: из двух
// конкурентных финализаций обновление выполнит ровно одна.
func (r *transactionRepository) TransitionToTerminal(ctx context.Context, id string, status domain.Status, externalID string) (bool, error) {
	if !status.Terminal() {
		return false, domain.ErrStatusInvalid
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1,
		    external_id = COALESCE(NULLIF($2,''), external_id),
		    updated_at = $3
		WHERE id = $4 AND status = $5
	`, string(status), externalID, time.Now().UTC(), id, string(domain.StatusPending))
	if err != nil {
		return false, fmt.Errorf("finalize transaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transaction rows affected: %w", err)
	}
	if affected == 0 {
		// Либо транзакции нет, либо её уже финализировал конкурентный путь.
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return false, findErr
		}
		return false, nil
	}

	return true, nil
}

// MarkEventProcessed пытается вставить eventID в ledger webhook_events.
// Unique violation по первичному ключу означает повторную доставку.
func (r *transactionRepository) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_events (id, created_at) VALUES ($1, $2)
	`, eventID, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert webhook event: %w", err)
	}

	return true, nil
}

// PruneProcessedEvents удаляет из webhook_events записи старше before,
// не более limit за вызов.
func (r *transactionRepository) PruneProcessedEvents(ctx context.Context, before time.Time, limit int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM webhook_events
		WHERE id IN (
			SELECT id FROM webhook_events
			WHERE created_at < $1
			ORDER BY created_at
			LIMIT $2
		)
	`, before, limit)
	if err != nil {
		return 0, fmt.Errorf("prune webhook events: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune webhook events rows affected: %w", err)
	}
	return int(deleted), nil
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникального ограничения Postgres.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.TransactionRepository = (*transactionRepository)(nil)
