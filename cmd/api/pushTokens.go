package main

import (
	"encoding/json"
	"net/http"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/reqctx"
)

// SavePushTokenRequest represents the payload for saving/updating a push token
type SavePushTokenRequest struct {
	Token      string          `json:"token" validate:"required,max=255"`
	DeviceInfo json.RawMessage `json:"device_info"`
}

// RemovePushTokenRequest represents the payload for removing a push token
type RemovePushTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// BulkRemoveTokensRequest represents the payload for bulk token removal
type BulkRemoveTokensRequest struct {
	Tokens []string `json:"tokens" validate:"required,min=1,max=500"`
}

// PruneStaleTokensRequest is {"older_than": "1680h"}, i.e. 70 days.
type PruneStaleTokensRequest struct {
	OlderThan string `json:"older_than" validate:"required"`
}

func (p *PruneStaleTokensRequest) Duration() (time.Duration, error) {
	return time.ParseDuration(p.OlderThan)
}

// savePushTokenHandler registers the caller's device for low stock alerts.
func (app *application) savePushTokenHandler(w http.ResponseWriter, r *http.Request) {
	principalID, err := reqctx.RequirePrincipal(r.Context())
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	var payload SavePushTokenRequest
	if err := readValidated(w, r, &payload); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	if err := app.store.PushTokens.AddOrUpdatePushToken(r.Context(), principalID, payload.Token, payload.DeviceInfo); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (app *application) removePushTokenHandler(w http.ResponseWriter, r *http.Request) {
	principalID, err := reqctx.RequirePrincipal(r.Context())
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	var payload RemovePushTokenRequest
	if err := readValidated(w, r, &payload); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	if err := app.store.PushTokens.RemovePushToken(r.Context(), principalID, payload.Token); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func requireSuperAdmin(r *http.Request) error {
	info, err := reqctx.Current(r.Context())
	if err != nil {
		return err
	}
	if !info.IsSuperAdmin {
		return apperr.Forbidden("super_admin", info.Role)
	}
	return nil
}

// bulkRemoveTokensHandler drops tokens Expo reported as unregistered.
func (app *application) bulkRemoveTokensHandler(w http.ResponseWriter, r *http.Request) {
	if err := requireSuperAdmin(r); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	var payload BulkRemoveTokensRequest
	if err := readValidated(w, r, &payload); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	if err := app.store.PushTokens.RemoveTokensByTokenList(r.Context(), payload.Tokens); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (app *application) pruneStaleTokensHandler(w http.ResponseWriter, r *http.Request) {
	if err := requireSuperAdmin(r); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	var payload PruneStaleTokensRequest
	if err := readValidated(w, r, &payload); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	olderThan, err := payload.Duration()
	if err != nil || olderThan <= 0 {
		app.errorResponse(w, r, apperr.Validation("older_than must be a positive duration such as 1680h"))
		return
	}

	n, err := app.store.PushTokens.PruneStaleTokens(r.Context(), olderThan)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, map[string]int64{"removed": n})
}
