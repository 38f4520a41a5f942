package response

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-gateway/internal/pkg/log"
	"identity-gateway/internal/pkg/xerrors"
)

func TestWriteErrorEnvelope(t *testing.T) {
	h := NewResponseHandler(log.GetLogger(), "test")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "duplicate email",
			err:        xerrors.FromCode(xerrors.CodeEmailExists),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Email already registered",
		},
		{
			name:       "invalid credentials",
			err:        xerrors.NewInvalidCredentialsError("bad password"),
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Invalid email or password",
		},
		{
			name:       "provider unavailable",
			err:        xerrors.FromCode(xerrors.CodeProviderTimeout),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Authentication service unavailable",
		},
		{
			name:       "plain error hides details",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Something went wrong",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NoError(t, h.WriteError(context.Background(), rec, tt.err))

			assert.Equal(t, tt.wantStatus, rec.Code)

			var env Envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.True(t, env.Error)
			assert.Equal(t, tt.wantMsg, env.Message)
		})
	}
}

func TestWriteJSONEmbeddedEnvelope(t *testing.T) {
	h := NewResponseHandler(log.GetLogger(), "test")
	rec := httptest.NewRecorder()

	payload := struct {
		Envelope
		Extra string `json:"extra"`
	}{Envelope: OK("success"), Extra: "x"}

	require.NoError(t, h.WriteJSON(context.Background(), rec, payload, http.StatusOK))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["error"])
	assert.Equal(t, "success", body["message"])
	assert.Equal(t, "x", body["extra"])
}
