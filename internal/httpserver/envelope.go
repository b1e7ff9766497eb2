package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/apierr"
)

// envelope is the one response shape every route returns, success or
// failure, so clients never have to branch on content-type or status alone.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: data})
}

func writeCreated(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Status: "success", Data: data})
}

// writeError maps an apierr.Kind to an HTTP status via StatusHint and
// renders it in the same envelope shape as a success response. Every
// error reaching the HTTP boundary is normalized to *apierr.Error first,
// the one seam the error-handling design routes through.
func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*apierr.Error)
	if !ok {
		apiErr = apierr.Wrap(apierr.Internal, err.Error(), err)
	}
	writeJSON(w, apiErr.Kind.StatusHint(), envelope{
		Status:  "error",
		Message: apiErr.Error(),
		Details: apiErr.Details,
	})
}
