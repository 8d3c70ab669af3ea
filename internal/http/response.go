package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	validation "github.com/jellydator/validation"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// validationMessage returns the first field error of a validation failure.
func validationMessage(err error) (string, bool) {
	var errs validation.Errors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return errs[keys[0]].Error(), true
}
