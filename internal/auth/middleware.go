package auth

import (
	"net/http"
)

const apiKeyQueryParam = "api-key"

// Middleware enforces the API key check on the debug surface. Unrestricted
// mode (no keys configured) passes every request through. Otherwise it
// accepts a bearer token (for curl/scripts) or the api-key query param
// (for the SSE endpoint, since EventSource can't set request headers),
// and rejects anything else with 401 rather than a browser-style login
// redirect — this surface has no session to establish, only a key to
// present on each request.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Unrestricted() {
			next.ServeHTTP(w, r)
			return
		}

		if key := bearerToken(r); key != "" && s.VerifyKey(key) {
			next.ServeHTTP(w, r)
			return
		}

		if key := r.URL.Query().Get(apiKeyQueryParam); key != "" && s.VerifyKey(key) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("WWW-Authenticate", `Bearer realm="slimplayer"`)
		http.Error(w, "missing or invalid api key", http.StatusUnauthorized)
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
