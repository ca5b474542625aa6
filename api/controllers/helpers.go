package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/farmloop-backend/api/middleware"
	"github.com/angelmondragon/farmloop-backend/api/validators"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
	"github.com/angelmondragon/farmloop-backend/pkg/pagination"
)

var errServiceUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "service unavailable")

// actor returns the authenticated caller.
func actor(r *http.Request) (uuid.UUID, enums.UserType, error) {
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return userID, middleware.UserTypeFromContext(r.Context()), nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

func chiParam(r *http.Request, name string) string {
	return strings.TrimSpace(chi.URLParam(r, name))
}
