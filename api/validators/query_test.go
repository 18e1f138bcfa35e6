package validators

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
)

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=x&big=500", nil)

	v, err := ParseQueryInt(r, "limit", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, v)

	v, err = ParseQueryInt(r, "missing", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = ParseQueryInt(r, "bad", 10, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = ParseQueryInt(r, "big", 10, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryBool(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?premium=true&flag=0&bad=maybe", nil)

	v, err := ParseQueryBool(r, "premium", false)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = ParseQueryBool(r, "flag", true)
	require.NoError(t, err)
	assert.False(t, v)

	v, err = ParseQueryBool(r, "missing", true)
	require.NoError(t, err)
	assert.True(t, v)

	_, err = ParseQueryBool(r, "bad", false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
