package rest

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorKindStatusCodes(t *testing.T) {
	for kind, code := range map[ErrorKind]int{
		MethodNotAllowed:      http.StatusMethodNotAllowed,
		MisconfiguredResource: http.StatusFailedDependency,
		BadPayload:            http.StatusBadRequest,
		Unauthenticated:       http.StatusUnauthorized,
		Unauthorized:          http.StatusForbidden,
		NotFound:              http.StatusNotFound,
		MultipleRecordsFound:  http.StatusConflict,
		DuplicateRecord:       http.StatusConflict,
		ValidationFailed:      http.StatusBadRequest,
		RateLimited:           http.StatusTooManyRequests,
		Internal:              http.StatusInternalServerError,
	} {
		assert.Equal(t, code, kind.StatusCode(), string(kind))
		assert.Equal(t, code, NewError(kind, "msg").StatusCode, string(kind))
	}
}

func TestAsAPIError(t *testing.T) {
	assert.Nil(t, AsAPIError(nil))

	apiErr := Errorf(NotFound, "no record for '%s'", "w1")
	assert.Equal(t, "no record for 'w1'", apiErr.Body)
	assert.Equal(t, apiErr, AsAPIError(errors.Wrap(apiErr, "preloading")))

	cause := errors.New("connection reset")
	internal := AsAPIError(cause)
	assert.Equal(t, Internal, internal.Kind)
	assert.Equal(t, http.StatusInternalServerError, internal.StatusCode)
	assert.NotContains(t, internal.Body, "connection reset")
	assert.Contains(t, internal.Error(), "connection reset")
	assert.True(t, errors.Is(internal, cause))
}
