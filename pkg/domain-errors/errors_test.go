package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "failed to load pass")

	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, HasCode(err, CodeInternal))
	assert.False(t, HasCode(err, CodeNotFound))
}

func TestHasCodeWalksChain(t *testing.T) {
	inner := New(CodeNotFound, "pass not found")
	outer := Wrap(inner, CodeInternal, "lookup failed")

	assert.True(t, HasCode(outer, CodeNotFound))
	assert.True(t, HasCode(outer, CodeInternal))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestMessageOfHidesUncodedErrors(t *testing.T) {
	assert.Equal(t, "internal error", MessageOf(fmt.Errorf("pq: relation missing")))
	assert.Equal(t, "too many pending passes", MessageOf(New(CodeValidation, "too many pending passes")))
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeInvalidState, http.StatusConflict},
		{CodeConflict, http.StatusConflict},
		{CodeForbidden, http.StatusForbidden},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToHTTPStatus(New(tt.code, "x")), string(tt.code))
	}
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(errors.New("plain")))
}
