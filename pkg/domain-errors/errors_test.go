package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCauseReachable(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeStorageUnavailable, "identity store unreachable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeStorageUnavailable, CodeOf(err))
	assert.Contains(t, err.Error(), "identity store unreachable")
}

func TestWithMetaDoesNotMutateOriginal(t *testing.T) {
	base := New(CodeAccountLocked, "account temporarily locked")
	withUntil := base.WithMeta("locked_until", "2026-01-01T00:00:00Z")

	assert.Nil(t, base.Meta)
	assert.Equal(t, "2026-01-01T00:00:00Z", withUntil.Meta["locked_until"])
	assert.ErrorIs(t, withUntil, base)
}

func TestCodeOfUnclassifiedError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, CodeNotFound, CodeOf(fmt.Errorf("lookup: %w", New(CodeNotFound, "missing"))))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidInput:       http.StatusBadRequest,
		CodeDecryptionError:    http.StatusBadRequest,
		CodeAlreadyRegistered:  http.StatusConflict,
		CodeNotFound:           http.StatusNotFound,
		CodeAccountLocked:      http.StatusLocked,
		CodeRiskBlocked:        http.StatusForbidden,
		CodeWrongCredential:    http.StatusUnauthorized,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeStorageUnavailable: http.StatusServiceUnavailable,
		CodeInternal:           http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}
