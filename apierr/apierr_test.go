package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{"not found", NotFoundf("chapter %s not found", "c1"), http.StatusNotFound, CodeNotFound, "chapter c1 not found"},
		{"conflict", Conflictf("a chapter with number %d already exists in this subject", 3), http.StatusConflict, CodeConflict, "a chapter with number 3 already exists in this subject"},
		{"wrapped conflict", fmt.Errorf("import: %w", Conflictf("dup")), http.StatusConflict, CodeConflict, "import: dup"},
		{"remote unavailable", ErrRemoteUnavailable, http.StatusServiceUnavailable, CodeRemote, "remote service not configured"},
		{"validation passthrough", Validationf("title is required"), http.StatusBadRequest, CodeValidation, "title is required"},
		{"unknown", errors.New("redis: connection refused"), http.StatusInternalServerError, CodeInternal, "something went wrong, please try again"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := From(tt.err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.msg, got.Error())
		})
	}
}

func TestFromNil(t *testing.T) {
	assert.Nil(t, From(nil))
}
