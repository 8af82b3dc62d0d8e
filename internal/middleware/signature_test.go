package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubVerifier struct {
	valid      bool
	seenBody   []byte
	seenHeader string
}

func (v *stubVerifier) ValidSignature(body []byte, header string) bool {
	v.seenBody = body
	v.seenHeader = header
	return v.valid
}

func TestVerifySignature(t *testing.T) {
	t.Run("rejects an invalid signature", func(t *testing.T) {
		verifier := &stubVerifier{valid: false}
		handler := VerifySignature(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		}))

		req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(`{"object":"page"}`))
		req.Header.Set("X-Hub-Signature-256", "sha256=bogus")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, `{"object":"page"}`, string(verifier.seenBody))
		assert.Equal(t, "sha256=bogus", verifier.seenHeader)
	})

	t.Run("restores the body for downstream handlers", func(t *testing.T) {
		verifier := &stubVerifier{valid: true}
		var got []byte
		handler := VerifySignature(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = io.ReadAll(r.Body)
		}))

		req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(`{"object":"page"}`))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `{"object":"page"}`, string(got))
	})

	t.Run("GET requests pass through unchecked", func(t *testing.T) {
		verifier := &stubVerifier{valid: false}
		called := false
		handler := VerifySignature(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		req := httptest.NewRequest("GET", "/webhook?hub.mode=subscribe", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.True(t, called)
	})
}
