package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
)

func identityCapturingHandler(captured **Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := IdentityFromContext(r.Context()); ok {
			*captured = identity
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireIdentityExtractsHeaders(t *testing.T) {
	var captured *Identity
	handler := NewGatewayAuthenticator().RequireIdentity()(identityCapturingHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Api-Tenant", "tenant-1")
	req.Header.Set("X-Api-User", "user-7")
	req.Header.Set("X-Api-Role", "Sales")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if captured == nil {
		t.Fatal("expected identity in context")
	}
	if captured.TenantID != "tenant-1" || captured.UserID != "user-7" {
		t.Fatalf("unexpected identity %+v", captured)
	}
	if captured.Role != domain.RoleSales {
		t.Fatalf("expected normalised sales role, got %q", captured.Role)
	}
}

func TestRequireIdentityRejectsMissingTenant(t *testing.T) {
	handler := NewGatewayAuthenticator().RequireIdentity()(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Api-Role", "admin")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireIdentityRejectsUnknownRole(t *testing.T) {
	handler := NewGatewayAuthenticator().RequireIdentity()(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Api-Tenant", "tenant-1")
	req.Header.Set("X-Api-Role", "superuser")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireIdentityEnforcesAllowedRoles(t *testing.T) {
	handler := NewGatewayAuthenticator().RequireIdentity(domain.RoleAdmin)(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set("X-Api-Tenant", "tenant-1")
	req.Header.Set("X-Api-Role", "warehouse")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireIdentityCustomHeaders(t *testing.T) {
	var captured *Identity
	authenticator := NewGatewayAuthenticator(
		WithTenantHeader("X-Gw-Tenant"),
		WithUserHeader("X-Gw-User"),
		WithRoleHeader("X-Gw-Role"),
	)
	handler := authenticator.RequireIdentity()(identityCapturingHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Gw-Tenant", "tenant-2")
	req.Header.Set("X-Gw-User", "user-1")
	req.Header.Set("X-Gw-Role", "warehouse")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if captured == nil || captured.TenantID != "tenant-2" || captured.Role != domain.RoleWarehouse {
		t.Fatalf("unexpected identity %+v", captured)
	}
}
