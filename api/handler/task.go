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
	"github.com/fastygo/timesheet/usecase/tasktree"
)

type TaskHandler struct {
	baseHandler
	tree *tasktree.UseCase
	sums *aggregation.Cached
}

func NewTaskHandler(tree *tasktree.UseCase, sums *aggregation.Cached, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		tree:        tree,
		sums:        sums,
	}
}

// @Summary List subtasks of parent_id (roots when absent), fetch ?ids= or resolve code_path
// @Tags tasks
// @Router /api/v1/tasks [get]
func (h *TaskHandler) ListTasks(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	ids, err := queryIDs(ctx, "ids")
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if ids != nil {
		tasks, err := h.tree.GetTasks(stdCtx, ids)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		h.respondSuccess(ctx, http.StatusOK, tasks)
		return
	}

	if codePath := string(ctx.QueryArgs().Peek("code_path")); codePath != "" {
		task, err := h.tree.GetTaskByCodePath(stdCtx, codePath)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		h.respondSuccess(ctx, http.StatusOK, []domain.Task{*task})
		return
	}

	parentID, err := queryInt64(ctx, "parent_id")
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	var parent *domain.Task
	if parentID != nil {
		if parent, err = h.tree.GetTask(stdCtx, *parentID); err != nil {
			h.respondError(ctx, err)
			return
		}
	}
	tasks, err := h.tree.ListSubTasks(stdCtx, parent)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, tasks)
}

// @Summary Get task
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(ctx *fasthttp.RequestCtx) {
	id, ok := pathID(ctx, "id")
	if !ok {
		h.invalid(ctx, "missing task id")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.tree.GetTask(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Get the parent of a task, null for a root
// @Tags tasks
// @Router /api/v1/tasks/{id}/parent [get]
func (h *TaskHandler) GetParent(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, ok := h.load(ctx, stdCtx, 0)
	if !ok {
		return
	}
	parent, err := h.tree.GetParent(stdCtx, task)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, parent)
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	var req transport.TaskRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	var parent *domain.Task
	if req.ParentID != nil {
		p, err := h.tree.GetTask(stdCtx, *req.ParentID)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		parent = p
	}

	created, err := h.tree.CreateTask(stdCtx, parent, &domain.Task{
		Code:    req.Code,
		Name:    req.Name,
		Comment: req.Comment,
		Amounts: req.Amounts(),
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.invalidate(stdCtx, created)
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Update task fields
// @Tags tasks
// @Router /api/v1/tasks/{id} [put]
func (h *TaskHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	var req transport.TaskRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, ok := h.load(ctx, stdCtx, req.Version)
	if !ok {
		return
	}
	task.Code = req.Code
	task.Name = req.Name
	task.Comment = req.Comment
	task.Amounts = req.Amounts()

	if err := h.tree.UpdateTask(stdCtx, task); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.invalidate(stdCtx, task)
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Delete task with its subtasks and contributions
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	version := int64(ctx.QueryArgs().GetUintOrZero("version"))
	task, ok := h.load(ctx, stdCtx, version)
	if !ok {
		return
	}
	if err := h.tree.RemoveTask(stdCtx, task); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.invalidate(stdCtx, task)
	h.invalidatePath(stdCtx, task.Path)
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}

// @Summary Swap task with its previous sibling
// @Tags tasks
// @Router /api/v1/tasks/{id}/move-up [post]
func (h *TaskHandler) MoveUp(ctx *fasthttp.RequestCtx) {
	h.move(ctx, h.tree.MoveUp)
}

// @Summary Swap task with its next sibling
// @Tags tasks
// @Router /api/v1/tasks/{id}/move-down [post]
func (h *TaskHandler) MoveDown(ctx *fasthttp.RequestCtx) {
	h.move(ctx, h.tree.MoveDown)
}

// @Summary Move task to a sibling position
// @Tags tasks
// @Router /api/v1/tasks/{id}/position [post]
func (h *TaskHandler) MoveToPosition(ctx *fasthttp.RequestCtx) {
	var req transport.PositionRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, ok := h.load(ctx, stdCtx, req.Version)
	if !ok {
		return
	}
	if err := h.tree.MoveToPosition(stdCtx, task, req.Number); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Move task under another parent
// @Tags tasks
// @Router /api/v1/tasks/{id}/parent [post]
func (h *TaskHandler) MoveToParent(ctx *fasthttp.RequestCtx) {
	var req transport.ParentRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, ok := h.load(ctx, stdCtx, req.Version)
	if !ok {
		return
	}
	var parent *domain.Task
	if req.ParentID != nil {
		p, err := h.tree.GetTask(stdCtx, *req.ParentID)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		parent = p
	}

	oldParent := task.Path.Clone()
	if err := h.tree.MoveToParent(stdCtx, task, parent); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.invalidatePath(stdCtx, oldParent)
	h.invalidate(stdCtx, task)
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Rollup sums of a task subtree
// @Tags sums
// @Router /api/v1/tasks/{id}/sums [get]
func (h *TaskHandler) GetTaskSums(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, ok := h.load(ctx, stdCtx, 0)
	if !ok {
		return
	}
	h.sumsOf(ctx, stdCtx, task)
}

// @Summary Rollup sums of the whole forest, or per task with ?ids=
// @Tags sums
// @Router /api/v1/sums [get]
func (h *TaskHandler) GetForestSums(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	ids, err := queryIDs(ctx, "ids")
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if ids == nil {
		h.sumsOf(ctx, stdCtx, nil)
		return
	}

	from, err := queryDate(ctx, "from")
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	to, err := queryDate(ctx, "to")
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	sums, err := h.sums.GetTasksSums(stdCtx, ids, from, to)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, sums)
}

func (h *TaskHandler) sumsOf(ctx *fasthttp.RequestCtx, stdCtx context.Context, task *domain.Task) {
	from, err := queryDate(ctx, "from")
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	to, err := queryDate(ctx, "to")
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	sums, err := h.sums.GetTaskSums(stdCtx, task, from, to)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, sums)
}

func (h *TaskHandler) move(ctx *fasthttp.RequestCtx, op func(context.Context, *domain.Task) error) {
	var req transport.MoveRequest
	if len(ctx.PostBody()) > 0 && !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, ok := h.load(ctx, stdCtx, req.Version)
	if !ok {
		return
	}
	if err := op(stdCtx, task); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// load fetches the task named by the {id} route parameter. A non-zero
// version replaces the loaded one so the use case detects stale writers.
func (h *TaskHandler) load(ctx *fasthttp.RequestCtx, stdCtx context.Context, version int64) (*domain.Task, bool) {
	id, ok := pathID(ctx, "id")
	if !ok {
		h.invalid(ctx, "missing task id")
		return nil, false
	}
	task, err := h.tree.GetTask(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return nil, false
	}
	if version != 0 {
		task.Version = version
	}
	return task, true
}

func (h *TaskHandler) invalidate(ctx context.Context, task *domain.Task) {
	if err := h.sums.InvalidateTask(ctx, task); err != nil {
		h.logger.Warn("sums invalidation failed", zap.Int64("task_id", task.ID), zap.Error(err))
	}
}

// invalidatePath drops the cached sums of the task at fullPath and of its
// ancestors. Used for the parent a task left, once the change is committed.
func (h *TaskHandler) invalidatePath(ctx context.Context, fullPath domain.Path) {
	if err := h.sums.InvalidatePath(ctx, fullPath); err != nil {
		h.logger.Warn("sums invalidation failed", zap.String("full_path", fullPath.String()), zap.Error(err))
	}
}
