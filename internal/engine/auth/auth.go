package auth

import (
	"fmt"
	"slices"
	"sort"
)

const (
	PermPredict       = "prediction.create"
	PermHistoryRead   = "prediction.read"
	PermEventsRead    = "events.read"
	PermModelsRead    = "models.read"
	PermModelsReload  = "models.reload"
	PermAPIKeysManage = "apikeys.manage"
)

const (
	RoleService   = "service"
	RoleClinician = "clinician"
	RoleOperator  = "operator"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// UnknownRoleError is returned when a credential names a role that does not exist.
type UnknownRoleError struct {
	Role string
}

func (e UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role %s", e.Role)
}

var roles = map[string][]string{
	RoleService:   {PermPredict, PermModelsRead},
	RoleClinician: {PermPredict, PermModelsRead, PermHistoryRead},
	RoleOperator: {
		PermPredict, PermModelsRead, PermHistoryRead, PermEventsRead,
		PermModelsReload, PermAPIKeysManage,
	},
}

// Roles returns the built-in role ids, sorted.
func Roles() []string {
	out := make([]string, 0, len(roles))
	for r := range roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func ValidateRole(role string) error {
	if _, ok := roles[role]; !ok {
		return UnknownRoleError{Role: role}
	}
	return nil
}

// Permissions expands roles into their permissions plus any granted
// directly. Unknown roles contribute nothing.
func Permissions(roleIDs, granted []string) []string {
	set := map[string]struct{}{}
	for _, r := range roleIDs {
		for _, p := range roles[r] {
			set[p] = struct{}{}
		}
	}
	for _, p := range granted {
		set[p] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Require returns ForbiddenError unless perm is among the permissions
// granted by roleIDs and granted.
func Require(roleIDs, granted []string, perm string) error {
	if slices.Contains(Permissions(roleIDs, granted), perm) {
		return nil
	}
	return ForbiddenError{Permission: perm}
}
