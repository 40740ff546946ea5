package transport

import "github.com/fastygo/timesheet/domain"

type TaskRequest struct {
	ParentID          *int64 `json:"parent_id"`
	Code              string `json:"code"`
	Name              string `json:"name"`
	Comment           string `json:"comment"`
	Budget            int64  `json:"budget"`
	InitiallyConsumed int64  `json:"initially_consumed"`
	Todo              int64  `json:"todo"`
	Version           int64  `json:"version"`
}

// Amounts converts the amount fields.
func (r TaskRequest) Amounts() domain.Amounts {
	return domain.Amounts{
		Budget:            r.Budget,
		InitiallyConsumed: r.InitiallyConsumed,
		Todo:              r.Todo,
	}
}

type MoveRequest struct {
	Version int64 `json:"version"`
}

type PositionRequest struct {
	Number  int   `json:"number"`
	Version int64 `json:"version"`
}

// ParentRequest moves a task; a null parent_id moves it to the roots.
type ParentRequest struct {
	ParentID *int64 `json:"parent_id"`
	Version  int64  `json:"version"`
}

type ContributionRequest struct {
	Date          string `json:"date"`
	ContributorID int64  `json:"contributor_id"`
	TaskID        int64  `json:"task_id"`
	DurationID    int64  `json:"duration_id"`
}

type DurationRequest struct {
	ID     int64 `json:"id"`
	Active *bool `json:"active"`
}
