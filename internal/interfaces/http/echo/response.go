package echo

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
)

const (
	headerUserID   = "X-User-ID"
	headerUsername = "X-Username"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

func errorResponse(c echo.Context, status int, code, message string) error {
	return c.JSON(status, apiResponse{Error: &errorBody{Code: code, Message: message}})
}

// maxCallerRunes bounds the identity headers copied onto tasks and persons.
const maxCallerRunes = 128

var errInvalidCaller = errors.New("invalid caller identity")

// callerFrom reads the caller identity set by the upstream gateway. Anonymous callers yield nil.
func callerFrom(c echo.Context) (*domain.Creator, error) {
	userID := strings.TrimSpace(c.Request().Header.Get(headerUserID))
	username := strings.TrimSpace(c.Request().Header.Get(headerUsername))
	if utf8.RuneCountInString(userID) > maxCallerRunes || utf8.RuneCountInString(username) > maxCallerRunes {
		return nil, errInvalidCaller
	}
	if userID == "" {
		return nil, nil
	}
	return &domain.Creator{UserID: userID, Username: username}, nil
}

func callerID(c echo.Context) (string, error) {
	caller, err := callerFrom(c)
	if err != nil || caller == nil {
		return "", err
	}
	return caller.UserID, nil
}

func invalidCallerResponse(c echo.Context) error {
	return errorResponse(c, http.StatusBadRequest, "invalid_caller", "X-User-ID and X-Username must be at most 128 characters")
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
