package http

import (
	"errors"
	"net/http"
	"strings"

	"tesouraria/internal/core"
	"tesouraria/internal/log"
)

// writeError maps a service error to its response. Validation failures are
// 422, unknown resources 404 and a duplicate e-mail 409. Anything else is
// logged and answered with an opaque 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.Is(err, errMalformedBody):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, core.ErrDuplicateEmail):
		ConflictError(core.ErrDuplicateEmail.Error()).Write(w)
	case errors.As(err, &ve):
		ValidationErrorResponse(ve.Field, ve.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("resource not found").Write(w)
	default:
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(),
			"Request failed", err, log.ComponentHTTP, operationFor(r.Method),
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, ""))
		InternalServerError("internal error").Write(w)
	}
}

func operationFor(method string) string {
	switch method {
	case http.MethodPost:
		return log.OpCreate
	case http.MethodPut:
		return log.OpUpdate
	case http.MethodDelete:
		return log.OpDelete
	default:
		return log.OpRead
	}
}

// ownerID reads the {owner} path value.
func ownerID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("owner"))
	if id == "" {
		return "", &core.ValidationError{Field: "owner_id", Err: core.ErrEmptyOwner}
	}
	return id, nil
}
