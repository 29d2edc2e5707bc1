package apitest

import (
	"encoding/json"
	"net/http"
)

// localDateTime is how the backend serializes zone-less timestamps.
const localDateTime = "2006-01-02T15:04:05.999999"

func respondJSON(w http.ResponseWriter, status int, body any) {
	if body == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondMessage(w http.ResponseWriter, status int, success bool, msg string) {
	respondJSON(w, status, map[string]any{"success": success, "message": msg})
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
