package handlers

import (
	"errors"
	"net/http"

	"github.com/adaptifi/swapcore/internal/services"
)

// statusForError maps service errors onto HTTP status codes. Anything not
// recognized is a 500 so programming errors stay visible.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidPrice),
		errors.Is(err, services.ErrUnknownAsset),
		errors.Is(err, services.ErrInvalidOwner),
		errors.Is(err, services.ErrInvalidHashlock),
		errors.Is(err, services.ErrInvalidDeadline),
		errors.Is(err, services.ErrInvalidWeight),
		errors.Is(err, services.ErrInvalidSlippage),
		errors.Is(err, services.ErrInvalidPreimage):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrSwapNotFound),
		errors.Is(err, services.ErrUnknownSource):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateSource),
		errors.Is(err, services.ErrHashlockInUse),
		errors.Is(err, services.ErrOrderTerminal),
		errors.Is(err, services.ErrOrderNotActive),
		errors.Is(err, services.ErrSwapNotOpen),
		errors.Is(err, services.ErrSwapExpired),
		errors.Is(err, services.ErrTimelockNotExpired),
		errors.Is(err, services.ErrOrderNotExpired),
		errors.Is(err, services.ErrAttemptLimit):
		return http.StatusConflict
	case errors.Is(err, services.ErrRefreshTooSoon):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
