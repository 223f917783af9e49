package csrf

import (
	"net/http"
	"slices"
	"strings"
)

var mutatingMethods = []string{
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
}

// PublicRoutes are reachable before a session or token exists. A request
// whose path contains one of these is never given a token.
var PublicRoutes = []string{
	"/auth/login",
	"/auth/create-account",
	"/auth/confirm-account",
	"/auth/request-code",
	"/auth/forgot-password",
	"/auth/validate-token",
	"/auth/update-password",
	"/auth/csrf-token",
}

// IsMutating reports whether method changes server-side state.
func IsMutating(method string) bool {
	return slices.Contains(mutatingMethods, strings.ToUpper(method))
}

// IsPublic reports whether path matches any of the public routes.
func IsPublic(path string) bool {
	return slices.ContainsFunc(PublicRoutes, func(route string) bool {
		return strings.Contains(path, route)
	})
}

// RequiresToken reports whether a request with the given method and path
// must carry a CSRF token.
func RequiresToken(method string, path string) bool {
	return IsMutating(method) && !IsPublic(path)
}
