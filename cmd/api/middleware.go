package main

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/ratelimiter"
	"storefront/internal/rbac"
	"storefront/internal/reqctx"

	"github.com/go-chi/chi/v5/middleware"
)

func (app *application) BasicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// read the auth header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("authorization header is missing"))
				return
			}

			// parse it -> get the base64
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Basic" {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("authorization header is malformed"))
				return
			}

			// decode it
			decoded, err := base64.StdEncoding.DecodeString(parts[1])
			if err != nil {
				app.unauthorizedBasicErrorResponse(w, r, err)
				return
			}

			// check the credentials
			username := app.config.auth.basic.user
			pass := app.config.auth.basic.pass
			if username == "" || pass == "" {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("basic auth is not configured"))
				return
			}

			creds := strings.SplitN(string(decoded), ":", 2)
			if len(creds) != 2 ||
				subtle.ConstantTimeCompare([]byte(creds[0]), []byte(username)) != 1 ||
				subtle.ConstantTimeCompare([]byte(creds[1]), []byte(pass)) != 1 {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("invalid credentials"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthTokenMiddleware verifies the bearer token and binds the request context.
// Role and permissions come from the membership row, not from the token, so
// a demotion takes effect on the next request.
func (app *application) AuthTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			app.unauthorizedErrorResponse(w, r, fmt.Errorf("authorization header is missing"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			app.unauthorizedErrorResponse(w, r, fmt.Errorf("authorization header is malformed"))
			return
		}

		claims, err := app.authenticator.ValidateToken(parts[1])
		if err != nil {
			app.unauthorizedErrorResponse(w, r, err)
			return
		}
		principalID, err := claims.PrincipalID()
		if err != nil {
			app.unauthorizedErrorResponse(w, r, err)
			return
		}

		ctx := r.Context()
		info := reqctx.Info{
			TenantID:    claims.TenantID,
			PrincipalID: principalID,
			RequestID:   middleware.GetReqID(ctx),
			ClientIP:    ratelimiter.ClientIP(r),
		}

		m, err := app.store.Access.GetMembership(ctx, claims.TenantID, principalID)
		if err != nil {
			app.errorResponse(w, r, err)
			return
		}
		if m != nil {
			info.Role = m.Role
			info.Permissions = m.Permissions
			info.IsSuperAdmin = m.IsSuperAdmin
		} else {
			sa, err := app.store.Access.IsSuperAdmin(ctx, principalID)
			if err != nil {
				app.errorResponse(w, r, err)
				return
			}
			if !sa {
				app.unauthorizedErrorResponse(w, r, fmt.Errorf("principal %d is not a member of tenant %d", principalID, claims.TenantID))
				return
			}
			info.IsSuperAdmin = true
		}

		// super-admins may act on another tenant explicitly
		if raw := r.Header.Get("X-Tenant-ID"); raw != "" {
			target, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || target <= 0 {
				app.errorResponse(w, r, apperr.Validation("X-Tenant-ID must be a positive integer"))
				return
			}
			if target != info.TenantID && !info.IsSuperAdmin {
				app.errorResponse(w, r, apperr.TenantIsolation("cross-tenant access requires super-admin"))
				return
			}
			info.TenantID = target
		}

		ctx, err = reqctx.Begin(ctx, info)
		if err != nil {
			app.errorResponse(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimitMiddleware applies the tenant's tier limit. Limit headers are set
// on every response, allowed or not.
func (app *application) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !app.config.rateLimiter.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		res, err := app.limiter.Enforce(r.Context(), r)
		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.ResetAt.IsZero() {
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		}
		if err != nil {
			app.errorResponse(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (app *application) requirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := rbac.RequirePermission(r.Context(), perm); err != nil {
				app.errorResponse(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (app *application) requireRole(min rbac.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := rbac.RequireRoleOrHigher(r.Context(), min); err != nil {
				app.errorResponse(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
