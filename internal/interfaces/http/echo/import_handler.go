package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	app "github.com/mohammadpnp/person-fusion/internal/application/fusion"
)

type ImportHandler struct {
	create  app.CreateImportTask
	batch   app.BatchCreateImportTasks
	confirm app.ConfirmImport
}

type confirmImportRequest struct {
	ResultIDs  []string `json:"result_ids"`
	Tags       []string `json:"tags"`
	Visibility string   `json:"visibility"`
}

func NewImportHandler(create app.CreateImportTask, batch app.BatchCreateImportTasks, confirm app.ConfirmImport) *ImportHandler {
	return &ImportHandler{create: create, batch: batch, confirm: confirm}
}

func (h *ImportHandler) CreateTask(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return invalidCallerResponse(c)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "bad_request", "multipart field 'file' is required")
	}
	content, err := readFormFile(fh)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "bad_request", "failed to read uploaded file")
	}

	out, err := h.create.Execute(c.Request().Context(), app.CreateImportTaskInput{
		FileName: fh.Filename,
		Content:  content,
		Creator:  caller,
	})
	if err != nil {
		if errors.Is(err, app.ErrInvalidUpload) {
			return errorResponse(c, http.StatusBadRequest, "invalid_upload", "uploaded file must have a name and content")
		}
		return errorResponse(c, http.StatusInternalServerError, "internal_error", "failed to create import task")
	}

	return c.JSON(http.StatusAccepted, apiResponse{Data: out})
}

func (h *ImportHandler) CreateTasks(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return invalidCallerResponse(c)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "bad_request", "multipart form is required")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return errorResponse(c, http.StatusBadRequest, "invalid_upload", "multipart field 'files' is required")
	}

	in := app.BatchCreateImportTasksInput{Creator: caller}
	var unreadable []app.BatchFailure
	for _, fh := range headers {
		content, err := readFormFile(fh)
		if err != nil {
			unreadable = append(unreadable, app.BatchFailure{FileName: fh.Filename, Error: "failed to read uploaded file"})
			continue
		}
		in.Files = append(in.Files, app.UploadFile{FileName: fh.Filename, Content: content})
	}

	out := app.BatchCreateImportTasksOutput{Successes: []app.TaskOutput{}, Failures: []app.BatchFailure{}}
	if len(in.Files) > 0 {
		out, err = h.batch.Execute(c.Request().Context(), in)
		if err != nil {
			return errorResponse(c, http.StatusInternalServerError, "internal_error", "failed to create import tasks")
		}
	}
	out.Failures = append(out.Failures, unreadable...)

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) ConfirmImport(c echo.Context) error {
	var req confirmImportRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "bad_request", "invalid request body")
	}

	out, err := h.confirm.Execute(c.Request().Context(), app.ConfirmImportInput{
		TaskID:     c.Param("id"),
		ResultIDs:  req.ResultIDs,
		Tags:       req.Tags,
		Visibility: req.Visibility,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidTaskID):
			return errorResponse(c, http.StatusBadRequest, "invalid_task_id", "id must be a valid UUID")
		case errors.Is(err, app.ErrInvalidVisibility):
			return errorResponse(c, http.StatusBadRequest, "invalid_visibility", "visibility must be public or private")
		case errors.Is(err, app.ErrTaskNotFound):
			return errorResponse(c, http.StatusNotFound, "not_found", "import task not found")
		}
		return errorResponse(c, http.StatusInternalServerError, "internal_error", "failed to confirm import")
	}

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}
