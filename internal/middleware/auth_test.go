package middleware

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func runIdentity(t *testing.T, userID, roles string) (Principal, bool) {
	t.Helper()

	var principal Principal
	var found bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, found = PrincipalFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/agent/send", nil)
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	if roles != "" {
		req.Header.Set(RolesHeader, roles)
	}

	Identity(next).ServeHTTP(httptest.NewRecorder(), req)
	return principal, found
}

func TestIdentityParsesClaims(t *testing.T) {
	principal, ok := runIdentity(t, " 42 ", "Teacher, ADMIN ,")
	if !ok {
		t.Fatal("expected a principal in the request context")
	}
	if principal.UserID != 42 {
		t.Fatalf("expected user id 42, got %d", principal.UserID)
	}
	if !reflect.DeepEqual(principal.Roles, []string{"teacher", "admin"}) {
		t.Fatalf("expected normalized roles, got %v", principal.Roles)
	}
	if !principal.HasRole("Admin") {
		t.Fatal("role check must be case-insensitive")
	}
}

func TestIdentityInvalidUserIDPassesThroughUnauthenticated(t *testing.T) {
	for _, userID := range []string{"", "abc", "0", "-5", "4.2"} {
		if _, ok := runIdentity(t, userID, "student"); ok {
			t.Fatalf("expected no principal for user-id claim %q", userID)
		}
	}
}

func TestIdentityRolesWithoutUserIDIgnored(t *testing.T) {
	if _, ok := runIdentity(t, "", "admin"); ok {
		t.Fatal("role claims alone must not authenticate")
	}
}
