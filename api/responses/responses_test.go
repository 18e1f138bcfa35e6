package responses

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
	"github.com/successplus/membership-backend/pkg/logger"
	"github.com/successplus/membership-backend/pkg/types"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, w.Code)
	var body types.SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "world", body.Data.(map[string]any)["hello"])
}

func TestWriteAck(t *testing.T) {
	w := httptest.NewRecorder()
	WriteAck(w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"field": "demo"})
	WriteError(t.Context(), logger.Nop(), w, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, string(pkgerrors.CodeValidation), body.Error.Code)
	assert.Equal(t, "bad input", body.Error.Message)
	assert.NotNil(t, body.Error.Details)
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(t.Context(), nil, w, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "internal server error", body.Error.Message)
}
