package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := TokenInvalid("invalid refresh token")
	assert.Equal(t, "invalid refresh token", err.Error())

	cause := errors.New("signature is invalid")
	wrapped := Wrap(cause, ErrCodeTokenInvalid, "verify token")
	assert.Equal(t, "verify token: signature is invalid", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("redis: connection refused")
	err := Wrap(cause, ErrCodeSessionPersist, "save session")

	require.ErrorIs(t, err, cause)
	assert.True(t, IsSessionPersist(err))
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "should be nil"))
	assert.Nil(t, Wrapf(nil, ErrCodeInternal, "should be %s", "nil"))
}

func TestIsHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		code  ErrorCode
	}{
		{"invalid credentials", InvalidCredentials(), IsInvalidCredentials, ErrCodeInvalidCredentials},
		{"conflict", Conflict("email already exists"), IsConflict, ErrCodeConflict},
		{"token expired", TokenExpired("access token expired"), IsTokenExpired, ErrCodeTokenExpired},
		{"token invalid", TokenInvalid("bad signature"), IsTokenInvalid, ErrCodeTokenInvalid},
		{"shield mismatch", ShieldMismatch(), IsShieldMismatch, ErrCodeShieldMismatch},
		{"too many requests", TooManyRequests("shield still live"), IsTooManyRequests, ErrCodeTooManyRequests},
		{"configuration", Configuration("validate secret unset"), IsConfiguration, ErrCodeConfiguration},
		{"not found", NotFound("user not found"), IsNotFound, ErrCodeNotFound},
		{"validation", Validation("email required"), IsValidation, ErrCodeValidation},
		{"internal", Internal("boom"), IsInternal, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.Equal(t, tt.code, GetCode(tt.err))
		})
	}
}

func TestIsHelpers_WrappedChain(t *testing.T) {
	inner := TooManyRequests("shield still live")
	outer := fmt.Errorf("resend verification: %w", inner)

	assert.True(t, IsTooManyRequests(outer))
	assert.False(t, IsShieldMismatch(outer))
	assert.Equal(t, ErrCodeTooManyRequests, GetCode(outer))
}

func TestIsHelpers_NonAppError(t *testing.T) {
	err := errors.New("plain error")

	assert.False(t, IsInvalidCredentials(err))
	assert.False(t, IsShieldMismatch(err))
	assert.Equal(t, ErrorCode(""), GetCode(err))
}

func TestValidationField(t *testing.T) {
	err := ValidationField("email", "email is required")

	assert.True(t, IsValidation(err))
	assert.Equal(t, "email", GetField(err))
	assert.Equal(t, "", GetField(Internal("no field")))
}

func TestUniformMessages(t *testing.T) {
	// Credential and shield failures must not leak which check failed.
	assert.Equal(t, InvalidCredentials().Error(), InvalidCredentials().Error())
	assert.NotContains(t, ShieldMismatch().Error(), "email")
}
