package restapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stopboard.app/internal/models"
)

func decodeRecorded(t *testing.T, w *httptest.ResponseRecorder) models.ResponseModel {
	t.Helper()
	var decoded models.ResponseModel
	require.NoError(t, json.NewDecoder(w.Body).Decode(&decoded))
	return decoded
}

func TestSendResponse(t *testing.T) {
	api := createTestApi(t)

	t.Run("ok envelope", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.sendResponse(w, httptest.NewRequest(http.MethodGet, "/test", nil), models.ResponseModel{
			Code:        http.StatusOK,
			CurrentTime: 1234567890,
			Text:        "OK",
			Version:     2,
			Data:        map[string]string{"test": "data"},
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		decoded := decodeRecorded(t, w)
		assert.Equal(t, "OK", decoded.Text)
		assert.Equal(t, map[string]any{"test": "data"}, decoded.Data)
	})

	t.Run("non-200 code becomes the status", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.sendResponse(w, httptest.NewRequest(http.MethodPost, "/test", nil), models.ResponseModel{
			Code: http.StatusAccepted,
			Text: "poll requested",
		})
		assert.Equal(t, http.StatusAccepted, w.Code)
	})
}

func TestSendErrors(t *testing.T) {
	api := createTestApi(t)

	tests := []struct {
		name string
		send func(http.ResponseWriter, *http.Request)
		code int
		text string
	}{
		{"unauthorized", api.sendUnauthorized, http.StatusUnauthorized, "permission denied"},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			api.serverErrorResponse(w, r, errors.New("disk on fire"))
		}, http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.send(w, httptest.NewRequest(http.MethodGet, "/test", nil))

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			decoded := decodeRecorded(t, w)
			assert.Equal(t, tt.code, decoded.Code)
			assert.Equal(t, tt.text, decoded.Text)
			assert.Equal(t, models.ResponseVersion, decoded.Version)
			assert.Equal(t, fixtureTime.UnixMilli(), decoded.CurrentTime)
			assert.Nil(t, decoded.Data)
		})
	}
}

func TestSetJSONResponseType(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("Content-Type", "text/html")
	var wInterface http.ResponseWriter = w

	setJSONResponseType(&wInterface)

	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}
