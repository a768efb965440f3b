package main

import (
	"net/http"
	"strconv"

	"storefront/internal/apperr"
	"storefront/internal/reqctx"

	"github.com/go-chi/chi/v5"
)

func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid "+name).With(name, raw)
	}
	return id, nil
}

func currentIDs(r *http.Request) (tenantID, principalID int64, err error) {
	if tenantID, err = reqctx.RequireTenant(r.Context()); err != nil {
		return 0, 0, err
	}
	principalID, err = reqctx.RequirePrincipal(r.Context())
	return tenantID, principalID, err
}
