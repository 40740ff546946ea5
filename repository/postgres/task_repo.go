package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/timesheet/domain"
	"github.com/fastygo/timesheet/repository"
)

type taskRepository struct {
	pool      *pgxpool.Pool
	batchSize int
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
// Bulk fetches bind at most batchSize ids per statement.
func NewTaskRepository(pool *pgxpool.Pool, batchSize int) repository.TaskRepository {
	if batchSize <= 0 {
		batchSize = repository.BatchSize
	}
	return &taskRepository{pool: pool, batchSize: batchSize}
}

func (r *taskRepository) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1`
	return r.one(ctx, query, id)
}

func (r *taskRepository) GetByNumber(ctx context.Context, path domain.Path, number int) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.path = $1 AND t.number = $2`
	return r.one(ctx, query, path.String(), number)
}

func (r *taskRepository) GetByCode(ctx context.Context, path domain.Path, code string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.path = $1 AND t.code = $2`
	return r.one(ctx, query, path.String(), code)
}

func (r *taskRepository) GetByIDs(ctx context.Context, ids []int64) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = ANY($1) ORDER BY t.path, t.number`
	var tasks []domain.Task
	for _, chunk := range repository.Chunk(ids, r.batchSize) {
		batch, err := r.many(ctx, query, chunk)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, batch...)
	}
	return tasks, nil
}

func (r *taskRepository) ListChildren(ctx context.Context, path domain.Path) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.path = $1 ORDER BY t.number`
	return r.many(ctx, query, path.String())
}

func (r *taskRepository) ListDescendants(ctx context.Context, prefix domain.Path) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.path LIKE $1 || '%' ORDER BY t.path, t.number`
	return r.many(ctx, query, prefix.String())
}

func (r *taskRepository) MaxNumber(ctx context.Context, path domain.Path) (int, bool, error) {
	const query = `SELECT MAX(number) FROM tasks WHERE path = $1`
	var max *int
	if err := conn(ctx, r.pool).QueryRow(ctx, query, path.String()).Scan(&max); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, domain.ErrEmptyResult
		}
		return 0, false, err
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

func (r *taskRepository) SumLeafAmounts(ctx context.Context, prefix domain.Path) (domain.Amounts, error) {
	query := `
	SELECT COALESCE(SUM(t.budget), 0), COALESCE(SUM(t.initially_consumed), 0), COALESCE(SUM(t.todo), 0)
	FROM tasks t
	WHERE t.path LIKE $1 || '%'
	  AND NOT EXISTS (SELECT 1 FROM tasks c WHERE c.path = ` + fullPathExpr + `)
	`
	var sums domain.Amounts
	if err := conn(ctx, r.pool).QueryRow(ctx, query, prefix.String()).Scan(
		&sums.Budget,
		&sums.InitiallyConsumed,
		&sums.Todo,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Amounts{}, domain.ErrEmptyResult
		}
		return domain.Amounts{}, err
	}
	return sums, nil
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO tasks (path, number, code, name, comment, budget, initially_consumed, todo, version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
	RETURNING id, version
	`

	if err := conn(ctx, r.pool).QueryRow(ctx, query,
		task.Path.String(),
		task.Number,
		task.Code,
		task.Name,
		task.Comment,
		task.Amounts.Budget,
		task.Amounts.InitiallyConsumed,
		task.Amounts.Todo,
	).Scan(&task.ID, &task.Version); err != nil {
		return err
	}
	task.SubTasksCount = 0
	return nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET path = $2,
		number = $3,
		code = $4,
		name = $5,
		comment = $6,
		budget = $7,
		initially_consumed = $8,
		todo = $9,
		version = version + 1
	WHERE id = $1 AND version = $10
	RETURNING version
	`

	q := conn(ctx, r.pool)
	if err := q.QueryRow(ctx, query,
		task.ID,
		task.Path.String(),
		task.Number,
		task.Code,
		task.Name,
		task.Comment,
		task.Amounts.Budget,
		task.Amounts.InitiallyConsumed,
		task.Amounts.Todo,
		task.Version,
	).Scan(&task.Version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.missOrConflict(ctx, q, task.ID)
		}
		return err
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	tag, err := conn(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) missOrConflict(ctx context.Context, q querier, id int64) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return domain.ErrConflict
	}
	return domain.ErrTaskNotFound
}

func (r *taskRepository) one(ctx context.Context, query string, args ...any) (*domain.Task, error) {
	task, err := scanTask(conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) many(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}
