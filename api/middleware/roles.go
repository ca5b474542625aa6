package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/angelmondragon/farmloop-backend/api/responses"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
	"github.com/angelmondragon/farmloop-backend/pkg/logger"
)

// RequireRole must run after Auth. Callers whose user type is not listed get 403.
func RequireRole(logg *logger.Logger, allowed ...enums.UserType) func(http.Handler) http.Handler {
	names := make([]string, len(allowed))
	for i, t := range allowed {
		names[i] = t.String()
	}
	denied := "requires " + strings.Join(names, " or ") + " account"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(allowed, UserTypeFromContext(r.Context())) {
				next.ServeHTTP(w, r)
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, denied))
		})
	}
}
