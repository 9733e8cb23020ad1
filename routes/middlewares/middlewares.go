package middlewares

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"

	"github.com/mbolis/quick-form/httpx"
	"github.com/mbolis/quick-form/log"
)

const AdminRole = "admin"

// Admin middleware to check for the 'admin' role in an OAuth token signed with secret.
func Admin(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), admin).Handler(next)
	}
}

func admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := r.Context().Value(oauth.ClaimsContext).(map[string]string)
		if !HasRole(claims, AdminRole) {
			httpx.LogStatus(w, http.StatusForbidden, log.DebugLevel, "auth.not_admin")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HasRole looks role up in the comma separated "roles" claim.
func HasRole(claims map[string]string, role string) bool {
	rolesClaim, ok := claims["roles"]
	if !ok {
		return false
	}
	for _, r := range strings.Split(rolesClaim, ",") {
		if strings.TrimSpace(r) == role {
			return true
		}
	}
	return false
}

// Credential is the user name the bearer token was issued to.
func Credential(r *http.Request) string {
	credential, _ := r.Context().Value(oauth.CredentialContext).(string)
	return credential
}
