package echo

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	app "github.com/mohammadpnp/person-fusion/internal/application/fusion"
)

type TaskHandler struct {
	list   app.ListImportTasks
	detail app.GetImportTaskDetail
}

func NewTaskHandler(list app.ListImportTasks, detail app.GetImportTaskDetail) *TaskHandler {
	return &TaskHandler{list: list, detail: detail}
}

func (h *TaskHandler) ListTasks(c echo.Context) error {
	creatorID, err := callerID(c)
	if err != nil {
		return invalidCallerResponse(c)
	}
	page, err := queryInt(c, "page")
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "bad_request", "page must be an integer")
	}
	size, err := queryInt(c, "size")
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "bad_request", "size must be an integer")
	}

	out, err := h.list.Execute(c.Request().Context(), app.ListImportTasksInput{
		CreatorID: creatorID,
		Page:      page,
		Size:      size,
	})
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, "internal_error", "failed to list import tasks")
	}

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *TaskHandler) GetTask(c echo.Context) error {
	viewerID, err := callerID(c)
	if err != nil {
		return invalidCallerResponse(c)
	}
	out, err := h.detail.Execute(c.Request().Context(), app.GetImportTaskDetailInput{
		TaskID:   c.Param("id"),
		ViewerID: viewerID,
	})
	if err != nil {
		if errors.Is(err, app.ErrInvalidTaskID) {
			return errorResponse(c, http.StatusBadRequest, "invalid_task_id", "id must be a valid UUID")
		}
		if errors.Is(err, app.ErrTaskNotFound) {
			return errorResponse(c, http.StatusNotFound, "not_found", "import task not found")
		}
		return errorResponse(c, http.StatusInternalServerError, "internal_error", "failed to get import task")
	}

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
