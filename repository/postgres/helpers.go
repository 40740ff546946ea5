package postgres

import (
	"github.com/fastygo/timesheet/domain"
)

// fullPathExpr renders the full path of the task aliased t, matching
// domain.Path.String of Task.FullPath.
const fullPathExpr = `t.path || lpad(upper(to_hex(t.number)), 2, '0')`

const taskColumns = `
	t.id, t.path, t.number, t.code, t.name, t.comment,
	t.budget, t.initially_consumed, t.todo, t.version,
	(SELECT COUNT(*) FROM tasks c WHERE c.path = ` + fullPathExpr + `) AS sub_tasks_count`

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var (
		task domain.Task
		path string
	)
	if err := row.Scan(
		&task.ID,
		&path,
		&task.Number,
		&task.Code,
		&task.Name,
		&task.Comment,
		&task.Amounts.Budget,
		&task.Amounts.InitiallyConsumed,
		&task.Amounts.Todo,
		&task.Version,
		&task.SubTasksCount,
	); err != nil {
		return nil, err
	}
	parsed, err := domain.ParsePath(path)
	if err != nil {
		return nil, err
	}
	task.Path = parsed
	return &task, nil
}
