package csrf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiresToken(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		expected bool
	}{
		{"project update", "PATCH", "/api/projects/123", true},
		{"project create", "POST", "/api/projects", true},
		{"task delete", "DELETE", "/api/projects/1/tasks/2", true},
		{"task update", "PUT", "/api/projects/1/tasks/2", true},
		{"profile update", "PATCH", "/api/auth/profile", true},
		{"lowercase method", "post", "/api/projects", true},
		{"project list", "GET", "/api/projects", false},
		{"head", "HEAD", "/api/projects", false},
		{"options", "OPTIONS", "/api/projects", false},
		{"login", "POST", "/api/auth/login", false},
		{"create account", "POST", "/api/auth/create-account", false},
		{"confirm account", "POST", "/api/auth/confirm-account", false},
		{"request code", "POST", "/api/auth/request-code", false},
		{"forgot password", "POST", "/api/auth/forgot-password", false},
		{"validate token", "POST", "/api/auth/validate-token", false},
		{"update password with token", "POST", "/api/auth/update-password/123456", false},
		{"csrf token", "POST", "/api/auth/csrf-token", false},
		{"substring match", "POST", "/v2/auth/login/sso", false},
		{"logout needs token", "POST", "/api/auth/logout", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RequiresToken(tt.method, tt.path))
		})
	}
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "_csrf", escapePath("_csrf"))
	assert.Equal(t, `a\.b`, escapePath("a.b"))
	assert.Equal(t, `a\*\?`, escapePath("a*?"))
}
