package main

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/domain/accesscontrol"
	"storefront/internal/rbac"
	"storefront/internal/reqctx"
)

type assignRolePayload struct {
	Role string `json:"role" validate:"required,role"`
}

// canManage reports whether the caller may grant role and may touch a member
// currently holding current (empty when the member is new).
func canManage(info reqctx.Info, role, current rbac.Role) error {
	if role != "" && !rbac.HasRoleOrHigher(info, role) {
		return apperr.Forbidden("role:"+string(role), info.Role)
	}
	if current != "" && !rbac.HasRoleOrHigher(info, current) {
		return apperr.Forbidden("role:"+string(current), info.Role)
	}
	return nil
}

// assignRoleHandler godoc
//
//	@Summary		Assign a tenant role
//	@Description	Adds the principal to the tenant or changes its role. Callers cannot grant a role above their own.
//	@Tags			members
//	@Accept			json
//	@Produce		json
//	@Param			principalID	path		int					true	"Principal ID"
//	@Param			body		body		assignRolePayload	true	"Role assignment payload"
//	@Success		200			{object}	accesscontrol.Membership
//	@Failure		403			{object}	errorBody
//	@Failure		422			{object}	errorBody
//	@Security		ApiKeyAuth
//	@Router			/members/{principalID} [put]
func (app *application) assignRoleHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	principalID, err := idParam(r, "principalID")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	var in assignRolePayload
	if err := readValidated(w, r, &in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	info, err := reqctx.Current(ctx)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	tenantID, err := reqctx.RequireTenant(ctx)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	existing, err := app.store.Access.GetMembership(ctx, tenantID, principalID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	var current rbac.Role
	if existing != nil {
		current = rbac.Role(existing.Role)
	}
	if err := canManage(info, rbac.Role(in.Role), current); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	if err := app.store.Access.AssignRole(ctx, tenantID, principalID, in.Role); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	m, err := app.store.Access.GetMembership(ctx, tenantID, principalID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.logger.Infow("role assigned", "tenant_id", tenantID, "principal_id", principalID, "role", in.Role, "by", info.PrincipalID)
	app.jsonResponse(w, http.StatusOK, m)
}

func (app *application) removeMemberHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	principalID, err := idParam(r, "principalID")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	info, err := reqctx.Current(ctx)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	tenantID, err := reqctx.RequireTenant(ctx)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if principalID == info.PrincipalID {
		app.errorResponse(w, r, apperr.Conflict("cannot remove your own membership"))
		return
	}

	existing, err := app.store.Access.GetMembership(ctx, tenantID, principalID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if existing == nil {
		app.errorResponse(w, r, apperr.NotFound("member not found").With("principal_id", principalID))
		return
	}
	if err := canManage(info, "", rbac.Role(existing.Role)); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	if err := app.store.Access.RemoveMember(ctx, tenantID, principalID); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) listMembersHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, err := reqctx.RequireTenant(r.Context())
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	members, err := app.store.Access.ListMembers(r.Context(), tenantID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if members == nil {
		members = []accesscontrol.Membership{}
	}
	app.jsonResponse(w, http.StatusOK, members)
}
