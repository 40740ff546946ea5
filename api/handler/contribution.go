package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/timesheet/api/transport"
	"github.com/fastygo/timesheet/domain"
	"github.com/fastygo/timesheet/pkg/httpcontext"
	"github.com/fastygo/timesheet/usecase/aggregation"
	"github.com/fastygo/timesheet/usecase/contribution"
	"github.com/fastygo/timesheet/usecase/tasktree"
)

type ContributionHandler struct {
	baseHandler
	contributions *contribution.UseCase
	tree          *tasktree.UseCase
	sums          *aggregation.Cached
}

func NewContributionHandler(
	contributions *contribution.UseCase,
	tree *tasktree.UseCase,
	sums *aggregation.Cached,
	adapter *httpcontext.Adapter,
	logger *zap.Logger,
) *ContributionHandler {
	return &ContributionHandler{
		baseHandler:   newBaseHandler(adapter, logger),
		contributions: contributions,
		tree:          tree,
		sums:          sums,
	}
}

// contributionQuery is the common contributor/task/from/to selection.
type contributionQuery struct {
	contributorID *int64
	task          *domain.Task
	from, to      *domain.Date
}

func (h *ContributionHandler) query(ctx *fasthttp.RequestCtx, stdCtx context.Context) (contributionQuery, bool) {
	var (
		q   contributionQuery
		err error
	)
	if q.contributorID, err = queryInt64(ctx, "contributor_id"); err != nil {
		h.respondError(ctx, err)
		return q, false
	}
	if q.from, err = queryDate(ctx, "from"); err != nil {
		h.respondError(ctx, err)
		return q, false
	}
	if q.to, err = queryDate(ctx, "to"); err != nil {
		h.respondError(ctx, err)
		return q, false
	}
	taskID, err := queryInt64(ctx, "task_id")
	if err != nil {
		h.respondError(ctx, err)
		return q, false
	}
	if taskID != nil {
		if q.task, err = h.tree.GetTask(stdCtx, *taskID); err != nil {
			h.respondError(ctx, err)
			return q, false
		}
	}
	return q, true
}

// @Summary List contributions by contributor, task subtree and date range
// @Tags contributions
// @Router /api/v1/contributions [get]
func (h *ContributionHandler) List(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	q, ok := h.query(ctx, stdCtx)
	if !ok {
		return
	}
	items, err := h.sums.GetContributions(stdCtx, q.contributorID, q.task, q.from, q.to)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if items == nil {
		items = []domain.Contribution{}
	}
	h.respondSuccess(ctx, http.StatusOK, items)
}

// @Summary Sum of contribution durations
// @Tags contributions
// @Router /api/v1/contributions/sum [get]
func (h *ContributionHandler) Sum(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	q, ok := h.query(ctx, stdCtx)
	if !ok {
		return
	}
	sum, err := h.sums.GetContributionsSum(stdCtx, q.contributorID, q.task, q.from, q.to)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]int64{"sum": sum})
}

// @Summary Number of contributions
// @Tags contributions
// @Router /api/v1/contributions/count [get]
func (h *ContributionHandler) Count(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	q, ok := h.query(ctx, stdCtx)
	if !ok {
		return
	}
	count, err := h.sums.GetContributionsCount(stdCtx, q.contributorID, q.task, q.from, q.to)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]int64{"count": count})
}

// @Summary Log time on a leaf task
// @Tags contributions
// @Router /api/v1/contributions [post]
func (h *ContributionHandler) Create(ctx *fasthttp.RequestCtx) {
	h.write(ctx, http.StatusCreated, h.contributions.CreateContribution)
}

// @Summary Change the duration of a contribution
// @Tags contributions
// @Router /api/v1/contributions [put]
func (h *ContributionHandler) Update(ctx *fasthttp.RequestCtx) {
	h.write(ctx, http.StatusOK, h.contributions.UpdateContribution)
}

// @Summary Delete a contribution
// @Tags contributions
// @Router /api/v1/contributions [delete]
func (h *ContributionHandler) Delete(ctx *fasthttp.RequestCtx) {
	c, ok := h.decodeContribution(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.contributions.DeleteContribution(stdCtx, c.ContributionKey); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}

func (h *ContributionHandler) write(ctx *fasthttp.RequestCtx, status int, op func(context.Context, *domain.Contribution) error) {
	c, ok := h.decodeContribution(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := op(stdCtx, c); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, status, c)
}

// decodeContribution reads the body and fills the contributor from the
// authenticated identity when the payload leaves it out.
func (h *ContributionHandler) decodeContribution(ctx *fasthttp.RequestCtx) (*domain.Contribution, bool) {
	var req transport.ContributionRequest
	if !h.decode(ctx, &req) {
		return nil, false
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		h.invalid(ctx, "invalid date")
		return nil, false
	}
	if req.ContributorID == 0 {
		if id, ok := httpcontext.CollaboratorID(ctx); ok {
			req.ContributorID = id
		}
	}
	return &domain.Contribution{
		ContributionKey: domain.ContributionKey{
			Date:          date,
			ContributorID: req.ContributorID,
			TaskID:        req.TaskID,
		},
		DurationID: req.DurationID,
	}, true
}

type DurationHandler struct {
	baseHandler
	contributions *contribution.UseCase
}

func NewDurationHandler(contributions *contribution.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *DurationHandler {
	return &DurationHandler{
		baseHandler:   newBaseHandler(adapter, logger),
		contributions: contributions,
	}
}

// @Summary List durations, only active ones with ?active=true
// @Tags durations
// @Router /api/v1/durations [get]
func (h *DurationHandler) List(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	durations, err := h.contributions.ListDurations(stdCtx, ctx.QueryArgs().GetBool("active"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if durations == nil {
		durations = []domain.Duration{}
	}
	h.respondSuccess(ctx, http.StatusOK, durations)
}

// @Summary Register a duration
// @Tags durations
// @Router /api/v1/durations [post]
func (h *DurationHandler) Create(ctx *fasthttp.RequestCtx) {
	var req transport.DurationRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	d, err := h.contributions.CreateDuration(stdCtx, req.ID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, d)
}

// @Summary Activate or deactivate a duration
// @Tags durations
// @Router /api/v1/durations/{id}/active [put]
func (h *DurationHandler) SetActive(ctx *fasthttp.RequestCtx) {
	id, ok := pathID(ctx, "id")
	if !ok {
		h.invalid(ctx, "missing duration id")
		return
	}
	var req transport.DurationRequest
	if !h.decode(ctx, &req) {
		return
	}
	if req.Active == nil {
		h.invalid(ctx, "active is required")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	d, err := h.contributions.SetDurationActive(stdCtx, id, *req.Active)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, d)
}
