package main

import (
	"net/http"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/auth"
)

type createTokenPayload struct {
	TenantID    int64  `json:"tenant_id" validate:"required,gt=0"`
	PrincipalID int64  `json:"principal_id" validate:"required,gt=0"`
	TTL         string `json:"ttl" validate:"omitempty"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	TenantID  int64     `json:"tenant_id"`
	Role      string    `json:"role,omitempty"`
}

// createTokenHandler godoc
//
//	@Summary		Issue a bearer token
//	@Description	Issues a token for a tenant member. Called by the identity service with basic auth; the membership row is the source of the role.
//	@Tags			authentication
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		createTokenPayload	true	"Tenant and principal"
//	@Success		201		{object}	tokenResponse
//	@Failure		401		{object}	errorBody
//	@Router			/auth/token [post]
func (app *application) createTokenHandler(w http.ResponseWriter, r *http.Request) {
	var in createTokenPayload
	if err := readValidated(w, r, &in); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	ttl := app.config.auth.token.exp
	if in.TTL != "" {
		d, err := time.ParseDuration(in.TTL)
		if err != nil || d <= 0 || d > app.config.auth.token.exp {
			app.errorResponse(w, r, apperr.Validation("ttl must be a positive duration no longer than the token lifetime").With("ttl", in.TTL))
			return
		}
		ttl = d
	}

	ctx := r.Context()
	p := auth.Principal{TenantID: in.TenantID, PrincipalID: in.PrincipalID}

	m, err := app.store.Access.GetMembership(ctx, in.TenantID, in.PrincipalID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	role := ""
	if m != nil {
		role = m.Role
	} else {
		sa, err := app.store.Access.IsSuperAdmin(ctx, in.PrincipalID)
		if err != nil {
			app.errorResponse(w, r, err)
			return
		}
		if !sa {
			app.errorResponse(w, r, apperr.Unauthorized("principal is not a member of this tenant"))
			return
		}
	}

	token, err := app.authenticator.GenerateToken(p, ttl)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusCreated, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(ttl).UTC(),
		TenantID:  p.TenantID,
		Role:      role,
	})
}
