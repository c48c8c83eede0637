package http

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/windfall/pronounce_service/internal/errors"
	"github.com/windfall/pronounce_service/pkg/response"
)

// statusClientClosedRequest is the de facto status for requests the client
// abandoned.
const statusClientClosedRequest = 499

func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var appErr *errors.AppError
	switch {
	case errors.As(err, &appErr):
		response.Error(w, appErr.HTTPStatus(), &response.ErrorBody{
			Code:    string(appErr.Code),
			Message: appErr.Message,
			Details: appErr.Details,
		})
	case stderrors.Is(err, context.DeadlineExceeded):
		response.Error(w, http.StatusGatewayTimeout, &response.ErrorBody{
			Code:    string(errors.ErrTimeout),
			Message: "request timed out",
		})
	case stderrors.Is(err, context.Canceled):
		response.Error(w, statusClientClosedRequest, &response.ErrorBody{
			Code:    "CANCELED",
			Message: "request canceled",
		})
	default:
		log.Error().Err(err).Msg("Internal server error")
		response.InternalError(w, "internal server error")
	}
}
