package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// Claim headers set by the upstream identity provider. The gateway only
// reads claims; sessions and tokens are managed outside this service.
const (
	UserIDHeader = "X-Auth-User-Id"
	RolesHeader  = "X-Auth-Roles"
)

// Principal is the authenticated identity extracted from claim headers.
type Principal struct {
	UserID int64
	Roles  []string
}

// HasRole reports whether the principal carries the given role claim.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

type contextKey int

const principalKey contextKey = iota

// Identity extracts the identity provider's claims into the request
// context. Requests without a valid numeric user-id claim pass through
// unauthenticated; the handler decides how to reject them.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(UserIDHeader)), 10, 64)
		if err != nil || userID <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		var roles []string
		for _, role := range strings.Split(r.Header.Get(RolesHeader), ",") {
			role = strings.ToLower(strings.TrimSpace(role))
			if role != "" {
				roles = append(roles, role)
			}
		}

		ctx := context.WithValue(r.Context(), principalKey, Principal{UserID: userID, Roles: roles})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
