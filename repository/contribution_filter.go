package repository

import "github.com/fastygo/timesheet/domain"

// DateMode selects how a ContributionFilter restricts the contribution day.
type DateMode int

const (
	DateAny     DateMode = iota
	DateOn               // day == From
	DateBetween          // From <= day <= To
	DateFrom             // day >= From
	DateUntil            // day <= To
	DateAfter            // day > From
)

// TaskMode selects how a ContributionFilter restricts the task.
type TaskMode int

const (
	TaskAny     TaskMode = iota
	TaskExact            // task_id == TaskID
	TaskSubtree          // task path starts with Prefix
)

// DateRange is the date part of a ContributionFilter.
type DateRange struct {
	Mode DateMode
	From domain.Date
	To   domain.Date
}

// TaskScope is the task part of a ContributionFilter.
type TaskScope struct {
	Mode   TaskMode
	TaskID int64
	Prefix domain.Path
}

// ContributionFilter is the predicate shared by contribution listings and
// every aggregate over contributions. Build it with BuildContributionFilter.
type ContributionFilter struct {
	ContributorID *int64
	Task          TaskScope
	Dates         DateRange
}

// BuildContributionFilter translates an optional (contributor, task,
// from, to) tuple into a filter.
//
// A leaf task matches its own id, a container matches every task below its
// full path. Equal bounds collapse to a single-day equality.
func BuildContributionFilter(contributorID *int64, task *domain.Task, from, to *domain.Date) ContributionFilter {
	f := ContributionFilter{ContributorID: contributorID}

	switch {
	case task == nil:
		f.Task = TaskScope{Mode: TaskAny}
	case task.IsLeaf():
		f.Task = TaskScope{Mode: TaskExact, TaskID: task.ID}
	default:
		f.Task = TaskScope{Mode: TaskSubtree, Prefix: task.FullPath()}
	}

	switch {
	case from != nil && to != nil && *from == *to:
		f.Dates = DateRange{Mode: DateOn, From: *from, To: *to}
	case from != nil && to != nil:
		f.Dates = DateRange{Mode: DateBetween, From: *from, To: *to}
	case from != nil:
		f.Dates = DateRange{Mode: DateFrom, From: *from}
	case to != nil:
		f.Dates = DateRange{Mode: DateUntil, To: *to}
	default:
		f.Dates = DateRange{Mode: DateAny}
	}
	return f
}

// After returns a copy of f restricted to days strictly after d, dropping
// any previous date restriction.
func (f ContributionFilter) After(d domain.Date) ContributionFilter {
	f.Dates = DateRange{Mode: DateAfter, From: d}
	return f
}

// Matches evaluates the filter against one contribution. taskPath is the
// full path of the contribution's task and is only consulted for subtree
// scopes.
func (f ContributionFilter) Matches(c domain.Contribution, taskPath domain.Path) bool {
	if f.ContributorID != nil && c.ContributorID != *f.ContributorID {
		return false
	}

	switch f.Task.Mode {
	case TaskExact:
		if c.TaskID != f.Task.TaskID {
			return false
		}
	case TaskSubtree:
		if len(taskPath) <= len(f.Task.Prefix) || !taskPath.HasPrefix(f.Task.Prefix) {
			return false
		}
	}

	day := c.Date
	switch f.Dates.Mode {
	case DateOn:
		return day == f.Dates.From
	case DateBetween:
		return day.Compare(f.Dates.From) >= 0 && day.Compare(f.Dates.To) <= 0
	case DateFrom:
		return day.Compare(f.Dates.From) >= 0
	case DateUntil:
		return day.Compare(f.Dates.To) <= 0
	case DateAfter:
		return day.Compare(f.Dates.From) > 0
	}
	return true
}
