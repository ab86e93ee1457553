package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
	"github.com/AnshRaj112/soconnect-backend/internal/services"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrInvalidCode, http.StatusBadRequest},
		{fmt.Errorf("%w: name", models.ErrInvalidInput), http.StatusBadRequest},
		{models.ErrAttachmentTooLarge, http.StatusRequestEntityTooLarge},
		{models.ErrUnsupportedType, http.StatusBadRequest},
		{models.ErrInvalidCredentials, http.StatusUnauthorized},
		{models.ErrUnauthenticated, http.StatusUnauthorized},
		{models.ErrCodeAlreadyRegistered, http.StatusBadRequest},
		{models.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("insert: %w", models.ErrTransient), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestErrorBodyHidesDetail(t *testing.T) {
	body := errorBody(fmt.Errorf("dial tcp 10.0.0.5:5432: %w", models.ErrTransient))
	assert.Equal(t, "TryAgain", body.Error)
	assert.NotContains(t, body.Message, "10.0.0.5")

	body = errorBody(errors.New("pq: relation does not exist"))
	assert.Equal(t, "Internal", body.Error)
	assert.NotContains(t, body.Message, "pq")

	body = errorBody(models.ErrSameParticipant)
	assert.Equal(t, "SameParticipant", body.Error)
	assert.Equal(t, models.ErrSameParticipant.Error(), body.Message)
}

func TestParsePage(t *testing.T) {
	page, err := parsePage(httptest.NewRequest(http.MethodGet, "/api/conversation/22222", nil))
	require.NoError(t, err)
	assert.True(t, page.IsZero())

	page, err = parsePage(httptest.NewRequest(http.MethodGet, "/x?before_id=42&limit=10", nil))
	require.NoError(t, err)
	assert.Equal(t, int64(42), page.BeforeID)
	assert.Equal(t, 10, page.Limit)

	for _, q := range []string{"before_id=0", "before_id=x", "limit=-3", "limit=9999"} {
		_, err := parsePage(httptest.NewRequest(http.MethodGet, "/x?"+q, nil))
		assert.ErrorIs(t, err, models.ErrInvalidInput, q)
	}
}

func TestDetectContentType(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	elf := append([]byte("\x7fELF\x02\x01\x01\x00"), make([]byte, 64)...)

	tests := []struct {
		name     string
		declared string
		data     []byte
		want     string
	}{
		{"sniffed type beats declared", "image/jpeg", png, "image/png"},
		{"no declared type", "", png, "image/png"},
		{"parameters dropped", "text/plain; charset=utf-8", []byte("hello there"), "text/plain"},
		{"generic declared type", "application/octet-stream", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"), "application/pdf"},
		{"text declared over binary", "text/plain", elf, "application/x-elf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectContentType(tt.declared, tt.data))
		})
	}

	// An executable labelled as an image must not pass the allow-list.
	assert.False(t, services.AllowedMIMEType(detectContentType("image/png", elf)))
}
