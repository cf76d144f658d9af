package chi

import (
	"crypto/rand"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/minio/highwayhash"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/simcheck/internal/logger"
)

// authExempt are routes served without credentials.
var authExempt = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// keyring holds keyed digests of the configured API keys. Comparing
// fixed-size digests keeps the check constant-time regardless of key length.
type keyring struct {
	hashKey []byte
	digests [][highwayhash.Size]byte
}

func newKeyring(apiKeys []string) *keyring {
	hashKey := make([]byte, 32)
	_, _ = rand.Read(hashKey)

	kr := &keyring{hashKey: hashKey}
	for _, k := range apiKeys {
		if k != "" {
			kr.digests = append(kr.digests, kr.digest(k))
		}
	}
	return kr
}

func (kr *keyring) digest(s string) [highwayhash.Size]byte {
	return highwayhash.Sum([]byte(s), kr.hashKey)
}

func (kr *keyring) contains(token string) bool {
	d := kr.digest(token)
	match := 0
	for i := range kr.digests {
		match |= subtle.ConstantTimeCompare(kr.digests[i][:], d[:])
	}
	return match == 1
}

// bearerToken extracts the credentials of an RFC 6750 Authorization header.
// The scheme name is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// BearerAuthMiddleware validates Bearer tokens against apiKeys.
// With no non-empty keys it is a pass-through, so an unset environment
// variable disables auth instead of accepting an empty token.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	kr := newKeyring(apiKeys)

	return func(next http.Handler) http.Handler {
		if len(kr.digests) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := authExempt[r.URL.Path]; ok || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			reject := func(reason string) {
				logpkg.FromContext(r.Context()).Debug("request rejected", zap.String("reason", reason))
				w.Header().Set("WWW-Authenticate", `Bearer realm="simcheck"`)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, reason)
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				reject("missing authorization header")
				return
			}
			token, ok := bearerToken(header)
			if !ok {
				reject("authorization header must use Bearer scheme")
				return
			}
			if !kr.contains(token) {
				reject("invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
