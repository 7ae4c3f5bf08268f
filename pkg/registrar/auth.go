package registrar

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

const bearerPrefix = "token "

// unauthorizedBody is returned verbatim for every rejection reason —
// unknown cluster, missing header, and mismatched token are all
// indistinguishable from the outside, so a caller can't use the response
// to enumerate valid cluster names.
const unauthorizedBody = `{"error":"unauthorized"}`

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedBody))
}

// authMiddleware extracts the cluster name from the {name} route variable
// and the bearer token from the Authorization header, then compares it in
// constant time against reg.TokenFor(name).
func authMiddleware(reg Registry) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := mux.Vars(r)["name"]

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				writeUnauthorized(w)
				return
			}
			presented := strings.TrimPrefix(header, bearerPrefix)

			expected, ok := reg.TokenFor(name)
			if !ok {
				writeUnauthorized(w)
				return
			}

			// Hash both sides to a fixed length first so the comparison
			// itself can't short-circuit on a differing input length.
			presentedHash := sha256.Sum256([]byte(presented))
			expectedHash := sha256.Sum256(expected)
			if subtle.ConstantTimeCompare(presentedHash[:], expectedHash[:]) != 1 {
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
