// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	"github.com/sentra-admin/sentra-admin/internal/shared"
)

// ErrorBody is the JSON shape every gateway rejection renders as.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// RespondError maps a gateway error to its structured response. Anything
// outside the taxonomy renders as an opaque internal error so persistence
// details never leak to clients.
func RespondError(w http.ResponseWriter, err error) {
	if gw, ok := shared.AsError(err); ok {
		JSON(w, gw.Status, ErrorBody{Kind: string(gw.Kind), Message: gw.Message, Status: gw.Status})
		return
	}
	JSON(w, http.StatusInternalServerError, ErrorBody{
		Kind:    "internal",
		Message: "internal error",
		Status:  http.StatusInternalServerError,
	})
}
