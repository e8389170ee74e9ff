package auth

import (
	"strings"
)

// Authorizer answers creator/admin questions for settlement, void, lock and
// edit actions. The admin side is a flat allow-list of Hive account names
// from configuration, kept swappable behind this type.
type Authorizer struct {
	admins map[string]struct{}
}

// NewAuthorizer builds an authorizer from the configured admin account list
func NewAuthorizer(adminAccounts []string) *Authorizer {
	admins := make(map[string]struct{}, len(adminAccounts))
	for _, name := range adminAccounts {
		admins[strings.ToLower(name)] = struct{}{}
	}
	return &Authorizer{admins: admins}
}

// IsAdmin reports whether the account is on the admin allow-list
func (a *Authorizer) IsAdmin(hiveAccount string) bool {
	_, ok := a.admins[strings.ToLower(hiveAccount)]
	return ok
}

// IsCreatorOrAdmin reports whether the caller may administer a prediction
// created by creatorID.
func (a *Authorizer) IsCreatorOrAdmin(userID uint, hiveAccount string, creatorID uint) bool {
	return userID == creatorID || a.IsAdmin(hiveAccount)
}
