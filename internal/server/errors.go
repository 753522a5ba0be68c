package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jacksonlee411/navtree/internal/logging"
	"github.com/jacksonlee411/navtree/internal/routing"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
	"github.com/jacksonlee411/navtree/modules/navigation/services"
	"github.com/jacksonlee411/navtree/pkg/httperr"
	"go.uber.org/zap"
)

func pgErrorCode(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		return strings.TrimSpace(pgErr.Code)
	}
	return ""
}

func isPgInvalidInput(err error) bool {
	switch pgErrorCode(err) {
	case "22P02", "22003", "22007", "22008":
		return true
	default:
		return false
	}
}

func isInvalidArgument(err error) bool {
	switch {
	case httperr.IsBadRequest(err), isPgInvalidInput(err):
		return true
	case errors.Is(err, types.ErrMenuIDRequired),
		errors.Is(err, types.ErrUnknownMenuType),
		errors.Is(err, types.ErrUnknownTarget),
		errors.Is(err, types.ErrUnknownStatusAction):
		return true
	default:
		return false
	}
}

// writeInternalAPIError maps engine errors to a status and stable code.
// Unrecognised errors are logged and reported as defaultCode.
func writeInternalAPIError(w http.ResponseWriter, r *http.Request, err error, defaultCode string) {
	status, code, msg := http.StatusInternalServerError, defaultCode, defaultCode
	switch {
	case types.IsFetchError(err):
		status, code = http.StatusBadGateway, "MENU_FETCH_FAILED"
	case types.IsCyclicMove(err):
		status, code, msg = http.StatusConflict, "MENU_MOVE_CYCLE", err.Error()
	case types.IsInvalidParent(err):
		status, code, msg = http.StatusUnprocessableEntity, "MENU_PARENT_NOT_FOUND", err.Error()
	case errors.Is(err, types.ErrMenuNotFound):
		status, code, msg = http.StatusNotFound, "MENU_NOT_FOUND", ""
	case errors.Is(err, services.ErrMenuHasChildren):
		status, code, msg = http.StatusConflict, "MENU_HAS_CHILDREN", ""
	case errors.Is(err, types.ErrReorderIncomplete),
		errors.Is(err, types.ErrReorderDuplicate),
		errors.Is(err, types.ErrReorderForeignSibling):
		status, code, msg = http.StatusUnprocessableEntity, "MENU_REORDER_MISMATCH", err.Error()
	case httperr.IsConflict(err):
		status, code, msg = http.StatusConflict, "conflict", err.Error()
		if err.Error() == "menu_id_exists" {
			code, msg = "MENU_ID_EXISTS", ""
		}
	case isInvalidArgument(err):
		status, code, msg = http.StatusBadRequest, "invalid_argument", err.Error()
	}
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("navigation api error", zap.String("code", code), zap.Error(err))
	}
	routing.WriteError(w, r, routing.RouteClassInternalAPI, status, code, msg)
}
