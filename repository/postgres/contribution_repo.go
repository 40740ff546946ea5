package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/timesheet/domain"
	"github.com/fastygo/timesheet/repository"
)

const uniqueViolation = "23505"

type contributionRepository struct {
	pool      *pgxpool.Pool
	batchSize int
}

// NewContributionRepository returns a Postgres-backed ContributionRepository.
func NewContributionRepository(pool *pgxpool.Pool, batchSize int) repository.ContributionRepository {
	if batchSize <= 0 {
		batchSize = repository.BatchSize
	}
	return &contributionRepository{pool: pool, batchSize: batchSize}
}

const contributionFrom = ` FROM contributions c JOIN tasks t ON t.id = c.task_id`

func (r *contributionRepository) Get(ctx context.Context, key domain.ContributionKey) (*domain.Contribution, error) {
	const query = `
	SELECT year, month, day, contributor_id, task_id, duration_id
	FROM contributions
	WHERE year = $1 AND month = $2 AND day = $3 AND contributor_id = $4 AND task_id = $5
	`
	row := conn(ctx, r.pool).QueryRow(ctx, query,
		key.Date.Year, int(key.Date.Month), key.Date.Day, key.ContributorID, key.TaskID)
	c, err := scanContribution(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrContributionNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *contributionRepository) List(ctx context.Context, filter repository.ContributionFilter) ([]domain.Contribution, error) {
	args := make([]any, 0, 6)
	query := `SELECT c.year, c.month, c.day, c.contributor_id, c.task_id, c.duration_id` +
		contributionFrom +
		buildContributionWhere(filter, &args) +
		` ORDER BY c.year, c.month, c.day, c.contributor_id, c.task_id`

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *contributionRepository) Totals(ctx context.Context, filter repository.ContributionFilter) (domain.ContributionTotals, error) {
	args := make([]any, 0, 6)
	query := `SELECT COALESCE(SUM(c.duration_id), 0), COUNT(*)` +
		contributionFrom +
		buildContributionWhere(filter, &args)

	var totals domain.ContributionTotals
	if err := conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&totals.Sum, &totals.Count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ContributionTotals{}, domain.ErrEmptyResult
		}
		return domain.ContributionTotals{}, err
	}
	return totals, nil
}

func (r *contributionRepository) Create(ctx context.Context, c *domain.Contribution) error {
	if c == nil {
		return domain.ErrInvalidPayload
	}
	const query = `
	INSERT INTO contributions (year, month, day, contributor_id, task_id, duration_id)
	VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		c.Date.Year, int(c.Date.Month), c.Date.Day, c.ContributorID, c.TaskID, c.DurationID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.WrapError(domain.ErrCodeConflict, "contribution already exists", err)
	}
	return err
}

func (r *contributionRepository) Update(ctx context.Context, c *domain.Contribution) error {
	if c == nil {
		return domain.ErrInvalidPayload
	}
	const query = `
	UPDATE contributions
	SET duration_id = $6
	WHERE year = $1 AND month = $2 AND day = $3 AND contributor_id = $4 AND task_id = $5
	`
	tag, err := conn(ctx, r.pool).Exec(ctx, query,
		c.Date.Year, int(c.Date.Month), c.Date.Day, c.ContributorID, c.TaskID, c.DurationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrContributionNotFound
	}
	return nil
}

func (r *contributionRepository) Delete(ctx context.Context, key domain.ContributionKey) error {
	const query = `
	DELETE FROM contributions
	WHERE year = $1 AND month = $2 AND day = $3 AND contributor_id = $4 AND task_id = $5
	`
	tag, err := conn(ctx, r.pool).Exec(ctx, query,
		key.Date.Year, int(key.Date.Month), key.Date.Day, key.ContributorID, key.TaskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrContributionNotFound
	}
	return nil
}

func (r *contributionRepository) DeleteByTaskIDs(ctx context.Context, taskIDs []int64) (int64, error) {
	const query = `DELETE FROM contributions WHERE task_id = ANY($1)`
	var removed int64
	for _, chunk := range repository.Chunk(taskIDs, r.batchSize) {
		tag, err := conn(ctx, r.pool).Exec(ctx, query, chunk)
		if err != nil {
			return removed, err
		}
		removed += tag.RowsAffected()
	}
	return removed, nil
}

func scanContribution(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Contribution, error) {
	var (
		c     domain.Contribution
		month int
	)
	if err := row.Scan(
		&c.Date.Year,
		&month,
		&c.Date.Day,
		&c.ContributorID,
		&c.TaskID,
		&c.DurationID,
	); err != nil {
		return nil, err
	}
	c.Date.Month = time.Month(month)
	return &c, nil
}

type durationRepository struct {
	pool *pgxpool.Pool
}

// NewDurationRepository returns a Postgres-backed DurationRepository.
func NewDurationRepository(pool *pgxpool.Pool) repository.DurationRepository {
	return &durationRepository{pool: pool}
}

func (r *durationRepository) Get(ctx context.Context, id int64) (*domain.Duration, error) {
	const query = `SELECT id, is_active FROM durations WHERE id = $1`
	var d domain.Duration
	if err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(&d.ID, &d.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDurationNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *durationRepository) List(ctx context.Context, activeOnly bool) ([]domain.Duration, error) {
	const query = `
	SELECT id, is_active
	FROM durations
	WHERE ($1 = FALSE OR is_active)
	ORDER BY id
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Duration
	for rows.Next() {
		var d domain.Duration
		if err := rows.Scan(&d.ID, &d.Active); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *durationRepository) Upsert(ctx context.Context, d *domain.Duration) error {
	if d == nil {
		return domain.ErrInvalidPayload
	}
	const query = `
	INSERT INTO durations (id, is_active)
	VALUES ($1, $2)
	ON CONFLICT (id) DO UPDATE
	SET is_active = EXCLUDED.is_active
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query, d.ID, d.Active)
	return err
}
