package server

import (
	"encoding/json"
	"net/http"
)

// writeJSON serializes v with a 200 status. Per the API contract, errors
// travel inside the body as an "error" field on the endpoint's documented
// shape; HTTP status codes other than 200 mean the endpoint could not
// structurally answer at all.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError is the one structural failure path (undecodable request body).
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
