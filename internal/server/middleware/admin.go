package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/alanyoungcy/bondledger/internal/crypto"
)

// maxAdminBody caps the body an admin signature is computed over.
const maxAdminBody = 1 << 20

// AdminAuth requires a valid HMAC signature over timestamp, method, path and
// body. A nil signer rejects every request, so admin routes are closed until
// a secret is configured.
func AdminAuth(signer *crypto.AdminSigner) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if signer == nil {
				writeError(w, http.StatusForbidden, "admin api disabled")
				return
			}
			body, err := io.ReadAll(io.LimitReader(r.Body, maxAdminBody+1))
			if err != nil {
				writeError(w, http.StatusBadRequest, "read body failed")
				return
			}
			if len(body) > maxAdminBody {
				writeError(w, http.StatusRequestEntityTooLarge, "body too large")
				return
			}
			err = signer.Verify(r.Method, r.URL.Path, body,
				r.Header.Get(crypto.HeaderTimestamp), r.Header.Get(crypto.HeaderSignature))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid admin signature")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
