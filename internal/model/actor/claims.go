package actor

import "strings"

// Claims is what the upstream identity provider asserts about the caller:
// a numeric user id and zero or more role claims. The gateway never manages
// sessions or tokens itself.
type Claims struct {
	UserID int64
	Roles  []string
}

// Authenticated reports whether the claims identify a user at all.
func (c Claims) Authenticated() bool {
	return c.UserID > 0
}

// HasRole reports whether the given role claim is present.
func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
