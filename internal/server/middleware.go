package server

import (
	"net/http"
	"strings"

	"github.com/jacksonlee411/navtree/internal/logging"
	"github.com/jacksonlee411/navtree/internal/routing"
	"github.com/jacksonlee411/navtree/pkg/authz"
	"go.uber.org/zap"
)

const (
	principalIDHeader   = "X-Principal-ID"
	principalRoleHeader = "X-Principal-Role"
)

func isOpsPath(path string) bool {
	switch path {
	case "/health", "/healthz", "/metrics":
		return true
	default:
		return false
	}
}

// withTenantAndPrincipal resolves the tenant from the request host and reads
// the principal asserted by the gateway headers. A request without
// X-Principal-ID continues as anonymous.
func withTenantAndPrincipal(classifier *routing.Classifier, tenants TenancyResolver, trustProxy bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassInternalAPI
		if classifier != nil {
			rc = classifier.Classify(path)
		}

		if isOpsPath(path) {
			next.ServeHTTP(w, r)
			return
		}

		t, ok, err := tenants.ResolveTenant(r.Context(), effectiveHost(r, trustProxy))
		if err != nil {
			logging.FromContext(r.Context()).Error("tenant resolve failed", zap.Error(err))
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "tenant_resolve_error", "tenant resolve error")
			return
		}
		if !ok {
			routing.WriteError(w, r, rc, http.StatusNotFound, "tenant_not_found", "tenant not found")
			return
		}
		ctx := withTenant(r.Context(), t)

		if id := strings.TrimSpace(r.Header.Get(principalIDHeader)); id != "" {
			role := strings.ToLower(strings.TrimSpace(r.Header.Get(principalRoleHeader)))
			if role == "" {
				role = authz.RoleTenantViewer
			}
			ctx = withPrincipal(ctx, Principal{ID: id, TenantID: t.ID, RoleSlug: role})
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type authorizer interface {
	Check(roleSlug string, tenantID string, req authz.Requirement) (authz.Decision, error)
}

func withAuthz(classifier *routing.Classifier, a authorizer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassInternalAPI
		if classifier != nil {
			rc = classifier.Classify(path)
		}

		if isOpsPath(path) {
			next.ServeHTTP(w, r)
			return
		}

		tenant, ok := currentTenant(r.Context())
		if !ok {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "tenant_missing", "tenant missing")
			return
		}

		req, shouldCheck := authz.RequirementFor(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		roleSlug := authz.RoleAnonymous
		if p, ok := currentPrincipal(r.Context()); ok {
			roleSlug = p.RoleSlug
		}

		d, err := a.Check(roleSlug, tenant.ID, req)
		if err != nil {
			logging.FromContext(r.Context()).Error("authz check failed", zap.Error(err))
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if !d.Allowed {
			if d.Enforced {
				routing.WriteError(w, r, rc, http.StatusForbidden, "forbidden", "forbidden")
				return
			}
			logging.FromContext(r.Context()).Info("authz shadow deny",
				zap.String("role", roleSlug), zap.String("object", req.Object), zap.String("action", req.Action))
		}

		next.ServeHTTP(w, r)
	})
}
