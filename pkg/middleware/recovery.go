package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	apperrors "agenda/pkg/errors"
	"agenda/pkg/logger"
)

// Recovery turns a handler panic into a 500 response. http.ErrAbortHandler
// is re-raised so the server drops the connection.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				log.Error("Panic recovered",
					"request_id", RequestID(r.Context()),
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"query", r.URL.RawQuery,
					"stack", string(debug.Stack()),
				)
				writeJSONError(w, http.StatusInternalServerError, apperrors.CodeInternal, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
