package postgres

import (
	"fmt"
	"strings"

	"github.com/fastygo/timesheet/repository"
)

// dayExpr orders like domain.Date.Ordinal.
const dayExpr = `(c.year * 10000 + c.month * 100 + c.day)`

// buildContributionWhere renders filter as a WHERE clause over contributions
// aliased c joined to tasks aliased t, appending bound values to args.
func buildContributionWhere(filter repository.ContributionFilter, args *[]any) string {
	var conds []string
	add := func(format string, values ...any) {
		placeholders := make([]any, len(values))
		for i, v := range values {
			*args = append(*args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(*args))
		}
		conds = append(conds, fmt.Sprintf(format, placeholders...))
	}

	switch filter.Dates.Mode {
	case repository.DateOn:
		d := filter.Dates.From
		add("c.year = %s AND c.month = %s AND c.day = %s", d.Year, int(d.Month), d.Day)
	case repository.DateBetween:
		add(dayExpr+" BETWEEN %s AND %s", filter.Dates.From.Ordinal(), filter.Dates.To.Ordinal())
	case repository.DateFrom:
		add(dayExpr+" >= %s", filter.Dates.From.Ordinal())
	case repository.DateUntil:
		add(dayExpr+" <= %s", filter.Dates.To.Ordinal())
	case repository.DateAfter:
		add(dayExpr+" > %s", filter.Dates.From.Ordinal())
	}

	if filter.ContributorID != nil {
		add("c.contributor_id = %s", *filter.ContributorID)
	}

	switch filter.Task.Mode {
	case repository.TaskExact:
		add("c.task_id = %s", filter.Task.TaskID)
	case repository.TaskSubtree:
		add("t.path LIKE %s || '%%'", filter.Task.Prefix.String())
	}

	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}
