package mirror

import (
	"errors"
	"net/http"

	"github.com/yungbote/sheetmirror-backend/internal/platform/apierr"
)

// Error codes returned by the mirror usecases.
const (
	CodeLearnFailed      = "learn_failed"
	CodeValidationFailed = "validation_failed"
	CodeNotFound         = "not_found"
	CodeStoreFailed      = "store_failed"
	CodeRenderFailed     = "render_failed"
)

var ErrNotFound = errors.New("sheet definition not found")

func learnFailed(err error) error {
	return apierr.New(http.StatusUnprocessableEntity, CodeLearnFailed, err)
}

func validationFailed(err error) error {
	return apierr.New(http.StatusBadRequest, CodeValidationFailed, err)
}

func notFound(err error) error {
	if err == nil {
		err = ErrNotFound
	}
	return apierr.New(http.StatusNotFound, CodeNotFound, err)
}

func storeFailed(err error) error {
	return apierr.New(http.StatusServiceUnavailable, CodeStoreFailed, err)
}

func renderFailed(err error) error {
	return apierr.New(http.StatusInternalServerError, CodeRenderFailed, err)
}

// Kind returns the error code carried by err, or "" for nil and foreign errors.
func Kind(err error) string {
	return apierr.CodeOf(err)
}
