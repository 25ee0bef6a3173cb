package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuotaRepository holds day-keyed anonymous usage counters. Counters are
// never explicitly reset; the date key rolls them over, and old rows are
// pruned by the worker.
type QuotaRepository struct {
	pool *pgxpool.Pool
}

func NewQuotaRepository(pool *pgxpool.Pool) *QuotaRepository {
	return &QuotaRepository{pool: pool}
}

func (r *QuotaRepository) GetDailyCount(ctx context.Context, clientIP, date string) (int, error) {
	const query = `
		SELECT analyses_count FROM user_quotas
		WHERE ip_address = $1 AND date = $2
	`
	var count int
	err := r.pool.QueryRow(ctx, query, clientIP, date).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// IncrementDailyCount is a single atomic increment-or-insert so
// concurrent anonymous traffic from the same IP never loses updates.
func (r *QuotaRepository) IncrementDailyCount(ctx context.Context, clientIP, date string) error {
	const query = `
		INSERT INTO user_quotas (ip_address, date, analyses_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (ip_address, date)
		DO UPDATE SET analyses_count = user_quotas.analyses_count + 1
	`
	_, err := r.pool.Exec(ctx, query, clientIP, date)
	return err
}

func (r *QuotaRepository) PruneBefore(ctx context.Context, date string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_quotas WHERE date < $1`, date)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
