// Package authz gates the navigation admin API with a casbin RBAC model
// scoped by tenant domain.
package authz

import (
	"errors"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
)

type Mode string

const (
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
	ModeDisabled Mode = "disabled"
)

// ParseMode defaults to enforce. Disabled is only accepted with allowUnsafe.
func ParseMode(raw string, allowUnsafe bool) (Mode, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ModeEnforce, nil
	}
	switch Mode(raw) {
	case ModeEnforce, ModeShadow:
		return Mode(raw), nil
	case ModeDisabled:
		if !allowUnsafe {
			return "", errors.New("authz: AUTHZ_MODE=disabled requires AUTHZ_UNSAFE_ALLOW_DISABLED=1")
		}
		return ModeDisabled, nil
	default:
		return "", errors.New("authz: invalid AUTHZ_MODE (expected enforce|shadow|disabled)")
	}
}

// Decision is the outcome of a check. Enforced is false in shadow and
// disabled modes, where a deny must not block the request.
type Decision struct {
	Allowed  bool
	Enforced bool
}

type Authorizer struct {
	enforcer *casbin.Enforcer
	mode     Mode
}

func NewAuthorizer(modelPath string, policyPath string, mode Mode) (*Authorizer, error) {
	enforcer, err := casbin.NewEnforcer(modelPath)
	if err != nil {
		return nil, err
	}
	enforcer.SetAdapter(fileadapter.NewAdapter(policyPath))
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	return &Authorizer{enforcer: enforcer, mode: mode}, nil
}

// NewAuthorizerFromText builds an Authorizer from an inline model and
// newline-separated policy lines.
func NewAuthorizerFromText(modelText string, policyText string, mode Mode) (*Authorizer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(policyText))
	if err != nil {
		return nil, err
	}
	return &Authorizer{enforcer: enforcer, mode: mode}, nil
}

func (a *Authorizer) Mode() Mode { return a.mode }

func SubjectFromRoleSlug(roleSlug string) string {
	roleSlug = strings.TrimSpace(strings.ToLower(roleSlug))
	if roleSlug == "" {
		roleSlug = RoleAnonymous
	}
	return "role:" + roleSlug
}

func DomainFromTenantID(tenantID string) string {
	return strings.ToLower(strings.TrimSpace(tenantID))
}

// Check evaluates req for a role inside a tenant.
func (a *Authorizer) Check(roleSlug string, tenantID string, req Requirement) (Decision, error) {
	switch a.mode {
	case ModeDisabled:
		return Decision{Allowed: true}, nil
	case ModeShadow, ModeEnforce:
		enforced := a.mode == ModeEnforce
		ok, err := a.enforcer.Enforce(SubjectFromRoleSlug(roleSlug), DomainFromTenantID(tenantID), req.Object, req.Action)
		if err != nil {
			return Decision{Enforced: enforced}, err
		}
		return Decision{Allowed: ok, Enforced: enforced}, nil
	default:
		return Decision{}, errors.New("authz: unknown mode")
	}
}
