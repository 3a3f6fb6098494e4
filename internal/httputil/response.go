package httputil

import (
	"encoding/json"
	"net/http"
)

// RespondJSON writes a JSON response with the given status code.
// The payload is marshaled first so a failed encode never leaves a partial body.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// ErrorBody is the flat error shape of the chat and workflow endpoints,
// which predate problem+json and whose clients read "error" directly.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// RespondErrorBody writes {"error", "code"} with the given status.
func RespondErrorBody(w http.ResponseWriter, status int, message, code string) {
	RespondJSON(w, status, ErrorBody{Error: message, Code: code})
}

// ProblemDetail represents an RFC 7807 Problem Details response
type ProblemDetail struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Status   int                    `json:"status"`
	Detail   string                 `json:"detail,omitempty"`
	Instance string                 `json:"instance,omitempty"`
	Extra    map[string]interface{} `json:"-"`
}

// MarshalJSON flattens Extra into the top level object.
func (p ProblemDetail) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"type":   p.Type,
		"title":  p.Title,
		"status": p.Status,
	}
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	if p.Instance != "" {
		m["instance"] = p.Instance
	}
	for k, v := range p.Extra {
		m[k] = v
	}
	return json.Marshal(m)
}

// RespondError writes an RFC 7807 Problem Details error response
func RespondError(w http.ResponseWriter, status int, detail string) {
	RespondErrorWithExtras(w, status, detail, nil)
}

// RespondErrorWithExtras writes a problem+json body; extras become top level
// members (e.g. "code").
func RespondErrorWithExtras(w http.ResponseWriter, status int, detail string, extras map[string]interface{}) {
	payload, err := json.Marshal(ProblemDetail{
		Type:   problemType(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Extra:  extras,
	})
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	w.Write(payload)
}

// problemSections maps statuses to the RFC section defining them.
var problemSections = map[int]string{
	http.StatusBadRequest:            "rfc7231#section-6.5.1",
	http.StatusUnauthorized:          "rfc7235#section-3.1",
	http.StatusForbidden:             "rfc7231#section-6.5.3",
	http.StatusNotFound:              "rfc7231#section-6.5.4",
	http.StatusConflict:              "rfc7231#section-6.5.8",
	http.StatusRequestEntityTooLarge: "rfc7231#section-6.5.11",
	http.StatusTooManyRequests:       "rfc6585#section-4",
	http.StatusInternalServerError:   "rfc7231#section-6.6.1",
	http.StatusBadGateway:            "rfc7231#section-6.6.3",
	http.StatusServiceUnavailable:    "rfc7231#section-6.6.4",
	http.StatusGatewayTimeout:        "rfc7231#section-6.6.5",
}

func problemType(status int) string {
	if section, ok := problemSections[status]; ok {
		return "https://datatracker.ietf.org/doc/html/" + section
	}
	return "about:blank"
}
