package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeIndexEmpty, "no canonical entities loaded")
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeIndexEmpty, err.Code)
	assert.Equal(t, "[RES_001] no canonical entities loaded", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestError_WithDetail(t *testing.T) {
	err := New(CodeNotFound, "molecule not found").WithDetail("id=CHEMBL25")
	assert.Equal(t, "[COMMON_003] molecule not found: id=CHEMBL25", err.Error())

	var nilErr *AppError
	assert.Nil(t, nilErr.WithDetail("ignored"))
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, CodeDatabaseError, "trial query failed")
	require.NotNil(t, err)
	assert.Equal(t, CodeDatabaseError, err.Code)
	assert.ErrorIs(t, err, cause)

	assert.Nil(t, Wrap(nil, CodeDatabaseError, "no-op"))
}

func TestWrap_PreservesCodeOnUnknown(t *testing.T) {
	inner := New(ErrCodeSourceRateLimited, "429 from chembl")
	outer := Wrap(inner, CodeUnknown, "annotation fetch failed")
	assert.Equal(t, ErrCodeSourceRateLimited, outer.Code)
}

func TestIsCode(t *testing.T) {
	inner := New(ErrCodeSourceRateLimited, "slow down")
	outer := Wrap(inner, CodeExternalError, "fetch failed")

	assert.True(t, IsCode(outer, ErrCodeSourceRateLimited))
	assert.True(t, IsCode(outer, CodeExternalError))
	assert.False(t, IsCode(outer, CodeNotFound))
	assert.False(t, IsCode(nil, CodeNotFound))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("gone")))
	assert.True(t, IsNotFound(New(CodeSourceNotFound, "no such molecule")))
	assert.False(t, IsNotFound(Internal("boom")))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(New(ErrCodeSourceRateLimited, "429")))
	assert.True(t, IsTransient(New(CodeTimeout, "deadline exceeded")))
	assert.True(t, IsTransient(New(ErrCodeSourceUnavailable, "503")))
	assert.False(t, IsTransient(New(ErrCodeSourceAuthFailed, "401")))
	assert.False(t, IsTransient(nil))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeOK, GetCode(nil))
	assert.Equal(t, CodeUnknown, GetCode(fmt.Errorf("plain error")))
	assert.Equal(t, ErrCodeIndexEmpty, GetCode(New(ErrCodeIndexEmpty, "empty")))
}
