package routing

import (
	"encoding/json"
	"html"
	"net/http"
	"strings"
)

type ErrorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    ErrorEnvelopeMeta `json:"meta"`
}

type ErrorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

func WriteError(w http.ResponseWriter, r *http.Request, rc RouteClass, status int, code string, message string) {
	if isJSONOnly(rc) || wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(ErrorEnvelope{
			Code:    code,
			Message: normalizeErrorMessage(code, message),
			TraceID: traceIDFromRequest(r),
			Meta: ErrorEnvelopeMeta{
				Path:   r.URL.Path,
				Method: r.Method,
			},
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte("<!doctype html><html><body>"))
	_, _ = w.Write([]byte(html.EscapeString(normalizeErrorMessage(code, message))))
	_, _ = w.Write([]byte("</body></html>"))
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json" || r.Header.Get("Accept") == "application/json; charset=utf-8"
}

func isJSONOnly(rc RouteClass) bool {
	return rc == RouteClassInternalAPI || rc == RouteClassPublicAPI
}

func traceIDFromRequest(r *http.Request) string {
	traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if len(traceID) != 32 || traceID == "00000000000000000000000000000000" {
		return ""
	}
	for _, ch := range traceID {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}

var knownErrorMessages = map[string]string{
	"forbidden":             "You are not allowed to perform this action.",
	"unauthorized":          "Your session has expired, please sign in again.",
	"invalid_request":       "The request is invalid, please check it and retry.",
	"invalid_argument":      "The request is invalid, please check it and retry.",
	"tenant_not_found":      "No tenant is configured for this host.",
	"tenant_missing":        "The tenant context is missing, please reload.",
	"tenant_resolve_error":  "The tenant could not be resolved, please retry later.",
	"MENU_NOT_FOUND":        "The menu item does not exist.",
	"MENU_PARENT_NOT_FOUND": "The target parent menu does not exist.",
	"MENU_MOVE_CYCLE":       "A menu cannot be moved under itself or one of its descendants.",
	"MENU_ID_EXISTS":        "A menu with this id already exists.",
	"MENU_HAS_CHILDREN":     "Remove or move the child menus first.",
	"MENU_REORDER_MISMATCH": "The new order must list every sibling exactly once.",
	"MENU_FETCH_FAILED":     "Menus could not be loaded from the backend, please retry.",
}

var upperWords = map[string]bool{"api": true, "db": true, "id": true, "ui": true, "url": true, "uuid": true, "rls": true, "cel": true}

func normalizeErrorMessage(code string, message string) string {
	if !isGenericErrorMessage(code, message) {
		return message
	}
	if known := knownErrorMessage(code); known != "" {
		return known
	}
	return humanizeErrorCode(code)
}

// isGenericErrorMessage reports messages that carry no more than the code:
// blanks, the code itself, snake_case tokens, and short "x failed" phrases.
func isGenericErrorMessage(code string, message string) bool {
	m := strings.TrimSpace(message)
	if m == "" || strings.EqualFold(m, strings.TrimSpace(code)) {
		return true
	}
	if !strings.Contains(m, " ") && (strings.HasSuffix(m, "_failed") || strings.HasSuffix(m, "_error")) {
		return true
	}
	words := strings.Fields(strings.ToLower(m))
	return len(words) <= 3 && (words[len(words)-1] == "failed" || words[len(words)-1] == "error")
}

func knownErrorMessage(code string) string {
	return knownErrorMessages[strings.TrimSpace(code)]
}

func humanizeErrorCode(code string) string {
	words := strings.FieldsFunc(strings.ToLower(code), func(r rune) bool { return r == '_' || r == '-' })
	if len(words) == 0 {
		return "Request failed."
	}
	if len(words) == 1 && (words[0] == "failed" || words[0] == "error") {
		return "Request " + words[0] + "."
	}
	return titleCaseWords(words) + "."
}

func titleCaseWords(words []string) string {
	out := make([]string, len(words))
	for i, w := range words {
		switch {
		case upperWords[w]:
			out[i] = strings.ToUpper(w)
		case i == 0:
			out[i] = capitalizeWord(w)
		default:
			out[i] = w
		}
	}
	return strings.Join(out, " ")
}

func capitalizeWord(w string) string {
	if w == "" {
		return ""
	}
	return strings.ToUpper(w[:1]) + w[1:]
}
