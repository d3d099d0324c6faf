package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/shopstream/errors"
)

// DataResponse is the standard success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// RespondWithError writes the error envelope. Errors that are not an
// AppError are mapped by errors.Wrap, so cancellation becomes 499 and
// anything unknown a 500.
func RespondWithError(c *gin.Context, err error) {
	appErr := errors.Wrap(err)
	c.JSON(appErr.HTTPStatus, appErr.ToResponse())
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// RespondCreated sends a 201 response wrapping data.
func RespondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, DataResponse{Data: data})
}
