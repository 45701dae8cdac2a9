package rest

import (
	"io"
	"net/http"
)

// pingHandler answers liveness checks; HEAD gets the status only.
func pingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	_, _ = io.WriteString(w, "pong")
}
