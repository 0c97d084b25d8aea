// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import "github.com/danielhkuo/wqt-backend/models"

type Resource string

type Action string

const (
	ResourceState    Resource = "state"
	ResourceShift    Resource = "shift"
	ResourceOrder    Resource = "order"
	ResourceHistory  Resource = "history"
	ResourceAdmin    Resource = "admin"
	ResourceMessage  Resource = "message"
	ResourceLocation Resource = "location"
	ResourceUser     Resource = "user"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionToggle Action = "toggle"

	// *Any actions act on records owned by someone else
	ActionReadAny  Action = "read_any"
	ActionWriteAny Action = "write_any"

	ActionCreatePrivileged Action = "create_privileged"
)

var (
	everyone    = []string{models.RolePicker, models.RoleOperative, models.RoleSupervisor, models.RoleAdmin}
	supervisors = []string{models.RoleSupervisor, models.RoleAdmin}
	adminsOnly  = []string{models.RoleAdmin}
)

type permission struct {
	resource Resource
	action   Action
}

var policy = map[permission][]string{
	{ResourceState, ActionRead}:  everyone,
	{ResourceState, ActionWrite}: everyone,

	{ResourceShift, ActionRead}:     everyone,
	{ResourceShift, ActionWrite}:    everyone,
	{ResourceShift, ActionReadAny}:  supervisors,
	{ResourceShift, ActionWriteAny}: supervisors,

	{ResourceOrder, ActionWrite}: everyone,

	{ResourceHistory, ActionRead}:    everyone,
	{ResourceHistory, ActionReadAny}: supervisors,

	{ResourceAdmin, ActionRead}: supervisors,

	{ResourceMessage, ActionRead}:  everyone,
	{ResourceMessage, ActionWrite}: supervisors,

	{ResourceLocation, ActionRead}:   everyone,
	{ResourceLocation, ActionToggle}: everyone,
	{ResourceLocation, ActionWrite}:  supervisors,

	{ResourceUser, ActionCreatePrivileged}: adminsOnly,
}

// Authorize is the single authorization decision point. Unknown
// (resource, action) pairs and unknown roles are denied.
func Authorize(role string, resource Resource, action Action) bool {
	for _, allowed := range policy[permission{resource, action}] {
		if allowed == role {
			return true
		}
	}
	return false
}

// IsValidRole reports whether role is one of the known roles
func IsValidRole(role string) bool {
	for _, r := range everyone {
		if r == role {
			return true
		}
	}
	return false
}

// CanUnlockRole reports whether a user holding role may unlock the
// requested overlay role. Admins may unlock any role.
func CanUnlockRole(role, requested string) bool {
	if !IsValidRole(requested) {
		return false
	}
	return role == requested || role == models.RoleAdmin
}
