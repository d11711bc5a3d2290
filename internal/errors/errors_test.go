package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/giannitedesco/minotaur/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestError_IsByCode(t *testing.T) {
	err := errors.NotFoundf("watch %d", 4)

	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.False(t, errors.Is(err, errors.ErrValidation))
	assert.True(t, errors.Is(fmt.Errorf("api: %w", err), errors.ErrNotFound))
}

func TestError_WrapKeepsCause(t *testing.T) {
	cause := stderrors.New("permission denied")
	err := errors.Wrapf(cause, errors.CodeForbidden, "register %s", "/root")

	assert.Equal(t, "register /root: permission denied", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, errors.ErrForbidden)
}

func TestError_WithDetailsCopies(t *testing.T) {
	base := errors.Validation("bad profile")
	detailed := base.WithDetails(map[string]string{"path": "is required"})

	assert.Nil(t, base.Details)
	assert.Equal(t, map[string]string{"path": "is required"}, detailed.Details)
	assert.Equal(t, base.Code, detailed.Code)
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.CodeNotFound, http.StatusNotFound},
		{errors.CodeAlreadyExists, http.StatusConflict},
		{errors.CodeForbidden, http.StatusForbidden},
		{errors.CodeValidation, http.StatusBadRequest},
		{errors.CodeUnavailable, http.StatusServiceUnavailable},
		{errors.CodeNotImplemented, http.StatusNotImplemented},
		{errors.CodeInternal, http.StatusInternalServerError},
		{errors.Code("OTHER"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}
