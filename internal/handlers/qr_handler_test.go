package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/sonobot/backend/internal/services"
)

func TestQRHandler_ShareCodeImage(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	handler := NewQRHandler(services.NewQRService(db, nil))
	r := chi.NewRouter()
	r.Get("/sharecode/{code}/qr.png", handler.ShareCodeImage)

	t.Run("renders a PNG for a live code", func(t *testing.T) {
		mock.ExpectQuery("SELECT expires_at FROM friend_links").
			WithArgs("ABC234", "PENDING").
			WillReturnRows(sqlmock.NewRows([]string{"expires_at"}).AddRow(time.Now().Add(10 * time.Minute)))

		req := httptest.NewRequest("GET", "/sharecode/ABC234/qr.png", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.NotEmpty(t, w.Body.Bytes())
	})

	t.Run("unknown code is a 404", func(t *testing.T) {
		mock.ExpectQuery("SELECT expires_at FROM friend_links").
			WithArgs("ZZZZZZ", "PENDING").
			WillReturnRows(sqlmock.NewRows([]string{"expires_at"}))

		req := httptest.NewRequest("GET", "/sharecode/ZZZZZZ/qr.png", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("expired code is a 404", func(t *testing.T) {
		mock.ExpectQuery("SELECT expires_at FROM friend_links").
			WithArgs("OLD234", "PENDING").
			WillReturnRows(sqlmock.NewRows([]string{"expires_at"}).AddRow(time.Now().Add(-time.Minute)))

		req := httptest.NewRequest("GET", "/sharecode/OLD234/qr.png", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
