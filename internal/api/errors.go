package api

import (
	"errors"
	"net/http"

	"github.com/gnb-control/gnbctl/internal/conf"
	"github.com/gnb-control/gnbctl/internal/docs"
	"github.com/gnb-control/gnbctl/internal/params"
	"github.com/gnb-control/gnbctl/internal/procctl"
	"github.com/gnb-control/gnbctl/internal/restart"
	"github.com/gnb-control/gnbctl/internal/runlog"
)

// ErrBadRequest marks structurally invalid requests (malformed JSON, bad
// query values) before any domain logic runs.
var ErrBadRequest = errors.New("BAD_REQUEST")

// ErrMethodNotAllowed marks a request with the wrong HTTP verb.
var ErrMethodNotAllowed = errors.New("METHOD_NOT_ALLOWED")

// ToAPIError maps a domain error to its wire code and HTTP status. Unknown
// errors stay opaque INTERNAL responses; the detail goes to the action log,
// not the client.
func ToAPIError(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusOK, "", ""
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "BAD_REQUEST", err.Error()
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", err.Error()
	case errors.Is(err, params.ErrValidation):
		return http.StatusBadRequest, "VALIDATION", err.Error()
	case errors.Is(err, conf.ErrKeyMissing):
		return http.StatusConflict, "CONFIG_KEY_MISSING", err.Error()
	case errors.Is(err, conf.ErrAccess):
		return http.StatusInternalServerError, "CONFIG_ACCESS", err.Error()
	case errors.Is(err, restart.ErrBusy):
		return http.StatusServiceUnavailable, "BUSY", "Another lifecycle operation is in flight, retry with backoff"
	case errors.Is(err, procctl.ErrStartFailed):
		return http.StatusConflict, "PROC_START_FAILED", err.Error()
	case errors.Is(err, procctl.ErrStopFailed):
		return http.StatusInternalServerError, "PROC_STOP_FAILED", err.Error()
	case errors.Is(err, procctl.ErrDiscovery):
		return http.StatusInternalServerError, "PROC_DISCOVERY", err.Error()
	case errors.Is(err, runlog.ErrNoLogs):
		return http.StatusNotFound, "RUNLOG_NOT_FOUND", err.Error()
	case errors.Is(err, docs.ErrNotFound):
		return http.StatusNotFound, "DOC_NOT_FOUND", err.Error()
	case errors.Is(err, docs.ErrAmbiguous):
		return http.StatusBadRequest, "DOC_AMBIGUOUS", err.Error()
	default:
		return http.StatusInternalServerError, "INTERNAL", "Internal server error"
	}
}
