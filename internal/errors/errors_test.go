package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnreconstructable(t *testing.T) {
	cause := New("checksum mismatch")
	err := Unreconstructable("thesis", 7, cause)

	assert.Equal(t, ErrorTypeUnreconstructable, err.Type)
	assert.Contains(t, err.Error(), "version 7 of thesis could not be reconstructed")
	assert.True(t, Is(err, cause))

	wrapped := fmt.Errorf("show: %w", err)
	var svcErr *Error
	require.True(t, As(wrapped, &svcErr))
	assert.Equal(t, CodeUnreconstructable, ExitCode(wrapped))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, CodeNotFound, ExitCode(NotFound("no such document")))
	assert.Equal(t, CodeValidation, ExitCode(ValidationError("bad version", "x")))
	assert.Equal(t, CodeInternal, ExitCode(New("plain")))
	assert.Equal(t, CodeInternal, ExitCode(Internal("store", New("disk"))))
}
