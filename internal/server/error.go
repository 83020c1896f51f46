package server

import (
	"errors"
	"net/http"

	"github.com/RyanW02/waterledger/pkg/ledger"
	"github.com/RyanW02/waterledger/pkg/offchain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type HttpError struct {
	error
	ResponseCode int
}

var _ error = (*HttpError)(nil)

func NewHttpError(responseCode int, message string) *HttpError {
	return &HttpError{
		error:        errors.New(message),
		ResponseCode: responseCode,
	}
}

// mapError picks the response for an error returned by the store, the ledger or the verifier.
func mapError(err error) *HttpError {
	switch {
	case errors.Is(err, offchain.ErrEncoding):
		return &HttpError{error: err, ResponseCode: http.StatusBadRequest}
	case errors.Is(err, offchain.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		return &HttpError{error: err, ResponseCode: http.StatusNotFound}
	case errors.Is(err, offchain.ErrLocatorFormat):
		return &HttpError{error: err, ResponseCode: http.StatusUnprocessableEntity}
	case errors.Is(err, offchain.ErrStorage):
		return NewHttpError(http.StatusServiceUnavailable, "storage unavailable")
	default:
		return NewHttpError(http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) abort(c *gin.Context, err error) {
	httpErr := mapError(err)
	if httpErr.ResponseCode >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.JSON(httpErr.ResponseCode, gin.H{"error": httpErr.Error()})
}
