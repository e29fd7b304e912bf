package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// Probes stay reachable without credentials.
var exemptPaths = map[string]struct{}{
	"/healthz": {},
}

// BearerAuthMiddleware rejects requests without one of apiKeys as Bearer
// token. Empty keys are ignored; with no keys left it passes everything.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	var keys [][]byte
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if msg := checkBearer(r.Header.Get("Authorization"), keys); msg != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="resdomain"`)
				writeError(w, http.StatusUnauthorized, codeUnauthorized, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkBearer returns the rejection message, empty when header carries a known key.
func checkBearer(header string, keys [][]byte) string {
	switch {
	case header == "":
		return "missing authorization header"
	case !strings.HasPrefix(header, bearerPrefix):
		return "authorization header must use Bearer scheme"
	}
	token := []byte(strings.TrimPrefix(header, bearerPrefix))
	matched := 0
	for _, k := range keys {
		matched |= subtle.ConstantTimeCompare(token, k)
	}
	if matched == 0 {
		return "invalid api key"
	}
	return ""
}
