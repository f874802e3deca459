package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	err := New(KindNoFiles, "no files matched").
		WithPath("/data/missing").
		WithDetail("attempts", 2)

	// Details render sorted by key.
	assert.Equal(t, "no_files: no files matched (attempts=2, path=/data/missing)", err.Error())
}

func TestErrorStringWithCause(t *testing.T) {
	cause := stderrors.New("disk fell over")
	err := Wrap(cause, KindIO, "read block")
	assert.Equal(t, "io: read block: disk fell over", err.Error())
}

func TestIsKind(t *testing.T) {
	err := New(KindCorruptSyncMarker, "marker mismatch")
	assert.True(t, IsKind(err, KindCorruptSyncMarker))
	assert.False(t, IsKind(err, KindCorruptContainer))
	assert.False(t, IsKind(nil, KindCorruptSyncMarker))
	assert.False(t, IsKind(stderrors.New("plain"), KindCorruptSyncMarker))
}

func TestIsKindThroughWrapping(t *testing.T) {
	inner := New(KindDecimalParse, "bad digits")
	outer := fmt.Errorf("row 12: %w", inner)
	assert.True(t, IsKind(outer, KindDecimalParse))

	// Wrap changes the outermost kind; errors.As stops at the first match.
	rewrapped := Wrap(inner, KindIO, "while reading")
	assert.True(t, IsKind(rewrapped, KindIO))
	assert.Equal(t, KindIO, KindOf(rewrapped))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, KindIO, "nothing happened"))
}

func TestWrapPreservesCauseChain(t *testing.T) {
	_, cause := os.Open("/definitely/not/here")
	require.Error(t, cause)

	err := Wrap(cause, KindIO, "open container file")
	assert.True(t, stderrors.Is(err, os.ErrNotExist))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNoAvroFiles, KindOf(New(KindNoAvroFiles, "x")))
	assert.Equal(t, KindInternal, KindOf(stderrors.New("plain")))
}

func TestAsError(t *testing.T) {
	err := fmt.Errorf("context: %w", New(KindFixedSizeMismatch, "short").WithField("id"))

	var typed *Error
	require.True(t, AsError(err, &typed))
	assert.Equal(t, KindFixedSizeMismatch, typed.Kind)
	assert.Equal(t, "id", typed.Details["field"])

	typed = nil
	assert.False(t, AsError(stderrors.New("plain"), &typed))
}

func TestStackCaptured(t *testing.T) {
	err := New(KindInternal, "boom")
	require.NotEmpty(t, err.Stack)
	assert.Contains(t, err.Stack[0].Function, "TestStackCaptured")
}
