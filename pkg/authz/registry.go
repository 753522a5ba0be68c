package authz

import (
	"net/http"
	"strings"
)

const (
	RoleTenantAdmin  = "tenant-admin"
	RoleTenantViewer = "tenant-viewer"
	RoleAnonymous    = "anonymous"
)

const (
	ActionRead  = "read"
	ActionAdmin = "admin"
)

// DomainAny matches every tenant in policy lines.
const DomainAny = "*"

const (
	ObjectNavigationMenus   = "navigation.menus"
	ObjectNavigationCascade = "navigation.cascade"
	ObjectNavigationUIState = "navigation.ui-state"
)

// Requirement is the object and action a request must be granted.
type Requirement struct {
	Object string
	Action string
}

const apiPrefix = "/nav/api/"

// RequirementFor maps a navigation API request to its Requirement. Paths
// outside /nav/api/ and unknown resources need none.
func RequirementFor(method string, path string) (Requirement, bool) {
	rest, ok := strings.CutPrefix(path, apiPrefix)
	if !ok {
		return Requirement{}, false
	}
	resource, _, _ := strings.Cut(rest, "/")

	action := ActionAdmin
	if method == http.MethodGet || method == http.MethodHead {
		action = ActionRead
	}
	switch resource {
	case "menus":
		return Requirement{Object: ObjectNavigationMenus, Action: action}, true
	case "navigation":
		return Requirement{Object: ObjectNavigationCascade, Action: ActionRead}, true
	case "ui-state":
		return Requirement{Object: ObjectNavigationUIState, Action: action}, true
	default:
		return Requirement{}, false
	}
}
