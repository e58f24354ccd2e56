// Package auth provides role extraction and route guards for the HMIS
// API, plus the explicit permission scope passed into services that
// mutate records on another record's behalf.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
)

// Scope is the permission context for a single service call. It is
// passed explicitly instead of being toggled on process-wide state, so
// elevation never outlives the call that needed it.
type Scope struct {
	UserID   string
	Elevated bool
}

// Elevated returns a scope permitted to perform system-derived record
// mutations (catalog writes made on a template's behalf, relaxed-
// validation inserts).
func Elevated(userID string) Scope {
	return Scope{UserID: userID, Elevated: true}
}

// ScopeFromContext builds a caller scope from the authenticated request
// context. Admins are elevated; everyone else gets a plain scope.
func ScopeFromContext(ctx context.Context) Scope {
	s := Scope{UserID: UserIDFromContext(ctx)}
	for _, r := range RolesFromContext(ctx) {
		if r == "admin" {
			s.Elevated = true
			break
		}
	}
	return s
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

// WithUser returns a context carrying the given user id and roles.
func WithUser(ctx context.Context, userID string, roles []string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRolesKey, roles)
}

// RequireRole returns middleware that checks if the user has any of the
// required roles. The admin role always passes.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == "admin" {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// HeaderAuthMiddleware resolves the calling user from trusted gateway
// headers (X-User-ID, X-User-Roles). Requests without a user header are
// rejected.
func HeaderAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := c.Request().Header.Get("X-User-ID")
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
			}
			var roles []string
			if raw := c.Request().Header.Get("X-User-Roles"); raw != "" {
				for _, r := range strings.Split(raw, ",") {
					roles = append(roles, strings.TrimSpace(r))
				}
			}
			c.SetRequest(c.Request().WithContext(WithUser(c.Request().Context(), userID, roles)))
			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development that
// gives unauthenticated requests a default admin identity.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-User-ID") != "" {
				return HeaderAuthMiddleware()(next)(c)
			}
			ctx := WithUser(c.Request().Context(), "dev-user", []string{"admin"})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
