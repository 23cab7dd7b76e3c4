package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
)

const (
	defaultTenantHeader = "X-Api-Tenant"
	defaultUserHeader   = "X-Api-User"
	defaultRoleHeader   = "X-Api-Role"
)

// GatewayAuthenticator extracts the caller identity from the trusted headers
// set by the API gateway and stores it in the request context.
type GatewayAuthenticator struct {
	tenantHeader string
	userHeader   string
	roleHeader   string
}

// Option customises GatewayAuthenticator behaviour.
type Option func(*GatewayAuthenticator)

// WithTenantHeader overrides the header carrying the tenant identifier.
func WithTenantHeader(name string) Option {
	return func(a *GatewayAuthenticator) {
		if name = strings.TrimSpace(name); name != "" {
			a.tenantHeader = name
		}
	}
}

// WithUserHeader overrides the header carrying the user identifier.
func WithUserHeader(name string) Option {
	return func(a *GatewayAuthenticator) {
		if name = strings.TrimSpace(name); name != "" {
			a.userHeader = name
		}
	}
}

// WithRoleHeader overrides the header carrying the caller role.
func WithRoleHeader(name string) Option {
	return func(a *GatewayAuthenticator) {
		if name = strings.TrimSpace(name); name != "" {
			a.roleHeader = name
		}
	}
}

// NewGatewayAuthenticator constructs an authenticator for middleware composition.
func NewGatewayAuthenticator(opts ...Option) *GatewayAuthenticator {
	a := &GatewayAuthenticator{
		tenantHeader: defaultTenantHeader,
		userHeader:   defaultUserHeader,
		roleHeader:   defaultRoleHeader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireIdentity validates the gateway headers and, when allowedRoles is
// non-empty, enforces that the caller holds one of them.
func (a *GatewayAuthenticator) RequireIdentity(allowedRoles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authentication service unavailable")
				return
			}

			tenantID := strings.TrimSpace(r.Header.Get(a.tenantHeader))
			if tenantID == "" {
				respondAuthError(w, http.StatusUnauthorized, "missing_tenant", "tenant header missing")
				return
			}

			role, ok := domain.ParseRole(r.Header.Get(a.roleHeader))
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "invalid_role", "role header missing or unknown")
				return
			}

			if len(allowed) > 0 {
				if _, ok := allowed[role]; !ok {
					respondAuthError(w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
					return
				}
			}

			identity := &Identity{
				TenantID: tenantID,
				UserID:   strings.TrimSpace(r.Header.Get(a.userHeader)),
				Role:     role,
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
		"status":  status,
	})
}
