package apperr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFormatsKindAndReason(t *testing.T) {
	err := New(PermissionDenied, "not the owner")
	assert.Equal(t, "PermissionDenied: not the owner", err.Error())
}

func TestNewfFormatsArgs(t *testing.T) {
	err := Newf(NotFound, "object %d not found", 42)
	assert.Equal(t, "NotFound: object 42 not found", err.Error())
}

func TestAsExtractsKindFromBareError(t *testing.T) {
	err := New(AuthFailed, "bad password")
	kind, ok := As(err)
	require := assert.New(t)
	require.True(ok)
	require.Equal(AuthFailed, kind)
}

func TestAsExtractsKindThroughWrapping(t *testing.T) {
	err := New(Overloaded, "critical backlog exceeded")
	wrapped := fmt.Errorf("session closing: %w", err)
	kind, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, Overloaded, kind)
}

func TestAsFailsForUnrelatedError(t *testing.T) {
	_, ok := As(fmt.Errorf("plain stdlib error"))
	assert.False(t, ok)
}

func TestAsFailsForNilError(t *testing.T) {
	_, ok := As(nil)
	assert.False(t, ok)
}
