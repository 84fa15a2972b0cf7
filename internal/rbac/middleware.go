package rbac

import (
	"net/http"
)

var defaultChecker = NewChecker(nil)

// Allowed reports whether the request's role carries perm.
func Allowed(r *http.Request, perm string) bool {
	role := RoleFromContext(r.Context())
	return role != "" && defaultChecker.Has(role, perm)
}

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Allowed(r, perm) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
