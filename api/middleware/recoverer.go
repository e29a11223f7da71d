package middleware

import (
	"errors"
	"net/http"

	"github.com/angelmondragon/tipledger-backend/api/responses"
	pkgerrors "github.com/angelmondragon/tipledger-backend/pkg/errors"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
)

// Recoverer converts a handler panic into a 500 INTERNAL_ERROR envelope.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
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

				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"panic":  rec,
						"method": r.Method,
						"path":   r.URL.Path,
					})
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Newf(pkgerrors.CodeInternal, "panic recovered: %v", rec))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
