package middleware

import (
	"bytes"
	"io"
	"log"
	"net/http"
)

// SignatureVerifier reports whether a request body matches its platform
// signature header.
type SignatureVerifier interface {
	ValidSignature(body []byte, header string) bool
}

const maxWebhookBody = 1 << 20 // 1MB

// VerifySignature rejects POST bodies whose X-Hub-Signature-256 header does
// not match. The body is buffered and restored so downstream handlers can
// decode it normally.
func VerifySignature(verifier SignatureVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
			if err != nil {
				http.Error(w, "Failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body.Close()

			if !verifier.ValidSignature(body, r.Header.Get("X-Hub-Signature-256")) {
				log.Printf("[WEBHOOK] Rejected request with invalid signature from %s", r.RemoteAddr)
				http.Error(w, "Invalid signature", http.StatusForbidden)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
